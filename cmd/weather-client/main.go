package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/mattt/weather-mcp/internal/config"
	"github.com/mattt/weather-mcp/internal/logging"
	"github.com/mattt/weather-mcp/mcp"
)

var rootCmd = &cobra.Command{
	Use:   "weather-client",
	Short: "A client for weather-mcp",
	Long: `weather-client launches a weather-mcp server as a subprocess and talks to
it over stdio. Use "tools" to list operations, "call" to invoke one
directly, or "ask" to let a language model pick operations for a
natural-language question.`,
	SilenceUsage: true,
}

var (
	serverCommand string
	serverArgs    []string
	configPath    string
	verbose       bool
	debug         bool

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// run wires up signal handling, logging and a session to the server for a
// subcommand, and closes the session when fn returns.
func run(cmd *cobra.Command, fn func(ctx context.Context, session *mcp.Session, logger *slog.Logger) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(os.Stderr, verbose, logging.FormatText)

	var stderr io.Writer = io.Discard
	if verbose {
		stderr = os.Stderr
	}

	session, err := mcp.Open(ctx, mcp.SpawnSpec{
		Command: serverCommand,
		Args:    serverArgs,
		Stderr:  stderr,
	},
		mcp.WithSessionLogger(logger),
		mcp.WithClientInfo("weather-client", version),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	result, err := session.Initialize(ctx)
	if err != nil {
		return err
	}
	logger.Debug("connected", "server", result.ServerInfo.Name, "version", result.ServerInfo.Version, "protocol", result.ProtocolVersion)
	dump(result)

	return fn(ctx, session, logger)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configPath, cmd.Flags())
}

// dump pretty-prints v to stderr when --debug is set.
func dump(v any) {
	if !debug {
		return
	}
	pp.Fprintln(os.Stderr, v)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverCommand, "server", "weather-mcp", "Server command to launch")
	flags.StringArrayVar(&serverArgs, "server-arg", nil, "Argument passed to the server command (repeatable)")
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	flags.BoolVar(&debug, "debug", false, "Dump protocol values to stderr")

	rootCmd.AddCommand(toolsCmd, callCmd, askCmd, pingCmd)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failure(err))
		os.Exit(1)
	}
}
