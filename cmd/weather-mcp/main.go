package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattt/weather-mcp/internal"
	"github.com/mattt/weather-mcp/internal/config"
	"github.com/mattt/weather-mcp/internal/logging"
	"github.com/mattt/weather-mcp/internal/weather"
	"github.com/mattt/weather-mcp/mcp"
	"github.com/mattt/weather-mcp/registry"
)

const instructions = `Weather data from weatherapi.com. Pass a city name, postal code, or "lat,lon" as the location.`

var rootCmd = &cobra.Command{
	Use:   "weather-mcp",
	Short: "An MCP server exposing weather operations",
	Long: `weather-mcp serves current conditions, forecasts, astronomy data and
weather alerts as invokable operations over a line-delimited JSON-RPC
stdio transport.

Configuration is read from --config, then WEATHER_MCP_* environment
variables (WEATHERAPI_KEY is also honored), then flags. The API key may
be a 1Password reference (op://vault/item/field) or an environment
reference (env:NAME).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		g.Go(func() error {
			apiKey, isSecret, err := internal.ResolveSecretReference(ctx, cfg.Weather.APIKey)
			if err != nil {
				return fmt.Errorf("error resolving weather API key: %w", err)
			}
			if isSecret {
				logger.Debug("resolved weather API key from secret reference")
			}

			httpClient := internal.NewHTTPClient(internal.RetryOptions{
				Retries:   cfg.Weather.Retries,
				Timeout:   cfg.Weather.Timeout,
				RPS:       cfg.Weather.RPS,
				UserAgent: fmt.Sprintf("%s/%s", cfg.Server.Name, version),
				Logger:    logger,
			})

			client, err := weather.NewClient(
				weather.WithAPIKey(apiKey),
				weather.WithBaseURL(cfg.Weather.BaseURL),
				weather.WithHTTPClient(httpClient),
				weather.WithLogger(logger),
			)
			if err != nil {
				return fmt.Errorf("error creating weather client: %w", err)
			}

			reg := registry.New()
			if err := weather.NewTools(client, nil).Register(reg, cfg.IsOperationDisabled); err != nil {
				return err
			}
			logger.Info("registered operations", "count", reg.Len(), "disabled", cfg.DisabledOperations)

			server, err := mcp.NewServer(
				mcp.WithRegistry(reg),
				mcp.WithServerInfo(cfg.Server.Name, cfg.Server.Version),
				mcp.WithInstructions(instructions),
				mcp.WithWorkers(cfg.Server.Workers),
				mcp.WithToolTimeout(cfg.Server.ToolTimeout),
				mcp.WithLogger(logger),
			)
			if err != nil {
				return fmt.Errorf("error creating server: %w", err)
			}

			return server.Serve(ctx, mcp.NewChannel(os.Stdin, os.Stdout))
		})

		return g.Wait()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging the config file, environment
and flags. API keys are masked unless --show-secrets is given. With
--save the configuration is written to a file instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		if !showSecrets {
			cfg = cfg.Redacted()
		}

		if savePath != "" {
			if err := cfg.Save(savePath); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", savePath)
			return err
		}

		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var (
	configPath  string
	verbose     bool
	logFormat   string
	showSecrets bool
	savePath    string

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, verbose, format)

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = version
	}
	return cfg, logger, nil
}

func init() {
	defaults := config.DefaultConfig()

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	flags.StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	flags.String("api-key", "", "weatherapi.com API key, op:// reference, or env:NAME reference")
	flags.String("base-url", defaults.Weather.BaseURL, "Weather API base URL")
	flags.Int("retries", defaults.Weather.Retries, "Maximum number of retries for failed requests")
	flags.Duration("timeout", defaults.Weather.Timeout, "HTTP request timeout")
	flags.IntP("rps", "r", defaults.Weather.RPS, "Maximum requests per second (0 for no limit)")
	flags.Int("workers", defaults.Server.Workers, "Maximum number of concurrent invocations")
	flags.Duration("tool-timeout", defaults.Server.ToolTimeout, "Per-invocation time limit (0 for none)")
	flags.StringSlice("disable", nil, "Operations to leave unregistered")

	configCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print API keys unmasked")
	configCmd.Flags().StringVar(&savePath, "save", "", "Write the configuration to this file")
	rootCmd.AddCommand(configCmd)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
