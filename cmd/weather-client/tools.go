package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattt/weather-mcp/mcp"
	"github.com/mattt/weather-mcp/registry"
)

var outputFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the operations the server offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, session *mcp.Session, logger *slog.Logger) error {
			catalog, err := session.ListOperations(ctx)
			if err != nil {
				return err
			}
			dump(catalog)
			return printCatalog(cmd.OutOrStdout(), catalog, outputFormat)
		})
	},
}

func printCatalog(w io.Writer, catalog []registry.Descriptor, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	case "yaml":
		data, err := toYAML(catalog)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "text", "":
		for _, d := range catalog {
			fmt.Fprintf(w, "%s\n  %s\n", heading(d.Name), d.Description)
			for _, name := range d.ParameterSchema.Names() {
				p := d.ParameterSchema[name]
				var notes []string
				if p.Required {
					notes = append(notes, "required")
				}
				if p.Default != nil {
					notes = append(notes, fmt.Sprintf("default %v", p.Default))
				}
				line := fmt.Sprintf("    %s (%s)", name, p.Type)
				if len(notes) > 0 {
					line += " " + faint("["+strings.Join(notes, ", ")+"]")
				}
				if p.Description != "" {
					line += ": " + p.Description
				}
				fmt.Fprintln(w, line)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// toYAML renders v as YAML using its JSON field names.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

func init() {
	toolsCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json or yaml)")
	_ = toolsCmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

var outputFormats = []string{"text", "json", "yaml"}
