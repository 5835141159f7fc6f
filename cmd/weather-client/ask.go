package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattt/weather-mcp/adapter"
	"github.com/mattt/weather-mcp/internal"
	"github.com/mattt/weather-mcp/internal/llm"
	"github.com/mattt/weather-mcp/mcp"
	"github.com/mattt/weather-mcp/registry"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question by letting a model choose operations",
	Long: `ask sends the question and the server's operations to an
OpenAI-compatible chat completions endpoint (GitHub Models by default,
authenticated with GITHUB_TOKEN), then invokes every operation the model
selects and prints the results.`,
	Example: `  weather-client ask "Should I bring an umbrella in Seattle tomorrow?"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		prompt := strings.Join(args, " ")

		return run(cmd, func(ctx context.Context, session *mcp.Session, logger *slog.Logger) error {
			// Fail before spending a model request on an unresponsive server.
			if err := session.Ping(ctx); err != nil {
				return fmt.Errorf("server is not responding: %w", err)
			}

			apiKey, _, err := internal.ResolveSecretReference(ctx, cfg.LLM.APIKey)
			if err != nil {
				return fmt.Errorf("error resolving model API key: %w", err)
			}

			completer, err := llm.NewOpenAI(
				llm.WithBaseURL(cfg.LLM.BaseURL),
				llm.WithAPIKey(apiKey),
				llm.WithModel(cfg.LLM.Model),
				llm.WithHTTPClient(internal.NewHTTPClient(internal.RetryOptions{
					Timeout:   cfg.Weather.Timeout,
					UserAgent: "weather-client/" + version,
					Logger:    logger,
				})),
				llm.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			catalog, err := session.ListOperations(ctx)
			if err != nil {
				return err
			}

			return ask(ctx, cmd.OutOrStdout(), session, completer, catalog, prompt)
		})
	},
}

// invoker is the part of a Session that ask needs.
type invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

type callOutcome struct {
	call   adapter.ExternalCall
	result json.RawMessage
	err    error
}

// ask has completer select calls for prompt and runs them concurrently.
// Outcomes are printed in the order the model chose them; a failed call
// does not stop the others.
func ask(ctx context.Context, w io.Writer, session invoker, completer llm.Completer, catalog []registry.Descriptor, prompt string) error {
	selection, err := completer.Select(ctx, prompt, adapter.ToExternalTools(catalog))
	if err != nil {
		return err
	}
	dump(selection)

	if selection.Content != "" {
		fmt.Fprintln(w, selection.Content)
	}
	if len(selection.Calls) == 0 {
		if selection.Content == "" {
			fmt.Fprintln(w, faint("The model did not select any operations."))
		}
		return nil
	}

	outcomes := make([]callOutcome, len(selection.Calls))
	var g errgroup.Group
	for i, call := range selection.Calls {
		outcomes[i].call = call
		g.Go(func() error {
			params, err := adapter.FromExternalCall(call)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].result, outcomes[i].err = session.Invoke(ctx, params.Name, params.Arguments)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "%s %s\n", heading(outcome.call.Name), faint(outcome.call.Arguments))
		if outcome.err != nil {
			failed++
			fmt.Fprintln(w, failure(outcome.err))
			continue
		}
		fmt.Fprintln(w, success("ok"))
		if err := printResult(w, outcome.result); err != nil {
			return err
		}
	}

	if failed == len(outcomes) {
		return errors.New("every selected operation failed")
	}
	return nil
}
