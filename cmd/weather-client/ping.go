package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattt/weather-mcp/mcp"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server responds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, session *mcp.Session, logger *slog.Logger) error {
			start := time.Now()
			if err := session.Ping(ctx); err != nil {
				return err
			}
			elapsed := time.Since(start).Round(time.Microsecond)
			logger.Debug("pong", "elapsed", elapsed)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("ok"), faint(elapsed))
			return err
		})
	},
}
