// Package llm asks a tool-calling language model which operations to invoke
// for a natural-language prompt.
package llm

import (
	"context"

	"github.com/mattt/weather-mcp/adapter"
)

// Selection is a model's answer to a prompt: the calls it selected, and any
// text it produced alongside them.
type Selection struct {
	Content string
	Calls   []adapter.ExternalCall
}

// Completer selects tool calls for a prompt.
type Completer interface {
	Select(ctx context.Context, prompt string, tools []adapter.ExternalTool) (*Selection, error)
}
