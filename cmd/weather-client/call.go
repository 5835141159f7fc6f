package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattt/weather-mcp/mcp"
)

var callArgs []string

var callCmd = &cobra.Command{
	Use:   "call <operation>",
	Short: "Invoke an operation directly",
	Example: `  weather-client call get_current_weather --arg location=London
  weather-client call get_weather_forecast --arg location=Paris --arg days=5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arguments, err := parseArgs(callArgs)
		if err != nil {
			return err
		}

		return run(cmd, func(ctx context.Context, session *mcp.Session, logger *slog.Logger) error {
			result, err := session.Invoke(ctx, args[0], arguments)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

// parseArgs turns key=value pairs into invoke arguments. Values that parse
// as JSON keep their JSON type; anything else is a string.
func parseArgs(pairs []string) (map[string]any, error) {
	arguments := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q (want key=value)", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			arguments[key] = decoded
		} else {
			arguments[key] = value
		}
	}
	return arguments, nil
}

func printResult(w io.Writer, result json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		return fmt.Errorf("error formatting result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func init() {
	callCmd.Flags().StringArrayVarP(&callArgs, "arg", "a", nil, "Operation argument as key=value (repeatable)")
}
