// Package adapter converts catalog descriptors into the function-tool shape
// consumed by tool-calling language models, and converts the calls those
// models select back into invoke requests.
package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v2"

	"github.com/mattt/weather-mcp/mcp"
	"github.com/mattt/weather-mcp/registry"
)

// ErrMalformedCall is returned for a selected call that cannot be turned into
// an invoke request.
var ErrMalformedCall = errors.New("malformed call")

// Function is the callable part of an ExternalTool.
type Function struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ExternalTool is a function tool definition in the common tool-calling shape.
type ExternalTool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// ExternalCall is a tool call selected by a model. Arguments holds a JSON
// object encoded as a string.
type ExternalCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToExternalTool converts a catalog descriptor into an ExternalTool. The
// parameters schema is a closed object with one property per parameter.
func ToExternalTool(d registry.Descriptor) ExternalTool {
	schema := &jsonschema.Schema{
		Type:                 "object",
		Properties:           make(map[string]*jsonschema.Schema, len(d.ParameterSchema)),
		Required:             d.ParameterSchema.RequiredNames(),
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}

	for name, p := range d.ParameterSchema {
		prop := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
		}
		if p.Default != nil {
			if raw, err := json.Marshal(p.Default); err == nil {
				prop.Default = raw
				prop.Description = strings.TrimSpace(fmt.Sprintf("%s (default: %s)", p.Description, raw))
			}
		}
		schema.Properties[name] = prop
	}

	return ExternalTool{
		Type: "function",
		Function: Function{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		},
	}
}

// ToExternalTools converts a whole catalog, preserving order.
func ToExternalTools(catalog []registry.Descriptor) []ExternalTool {
	tools := make([]ExternalTool, 0, len(catalog))
	for _, d := range catalog {
		tools = append(tools, ToExternalTool(d))
	}
	return tools
}

// OpenAI renders t as an openai-go tool parameter.
func (t ExternalTool) OpenAI() (openai.ChatCompletionToolUnionParam, error) {
	var parameters openai.FunctionParameters
	if t.Function.Parameters != nil {
		data, err := json.Marshal(t.Function.Parameters)
		if err != nil {
			return openai.ChatCompletionToolUnionParam{}, fmt.Errorf("error encoding parameters for %s: %w", t.Function.Name, err)
		}
		if err := json.Unmarshal(data, &parameters); err != nil {
			return openai.ChatCompletionToolUnionParam{}, fmt.Errorf("error decoding parameters for %s: %w", t.Function.Name, err)
		}
	}

	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        t.Function.Name,
		Description: openai.String(t.Function.Description),
		Parameters:  parameters,
	}), nil
}

// FromExternalCall converts a selected call into invoke parameters. The
// arguments are not validated against any schema; the server does that.
func FromExternalCall(call ExternalCall) (mcp.InvokeParams, error) {
	if strings.TrimSpace(call.Name) == "" {
		return mcp.InvokeParams{}, fmt.Errorf("%w: empty name", ErrMalformedCall)
	}

	arguments := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		var decoded any
		if err := json.Unmarshal([]byte(call.Arguments), &decoded); err != nil {
			return mcp.InvokeParams{}, fmt.Errorf("%w: arguments for %s: %w", ErrMalformedCall, call.Name, err)
		}
		object, ok := decoded.(map[string]any)
		if !ok {
			return mcp.InvokeParams{}, fmt.Errorf("%w: arguments for %s are not an object", ErrMalformedCall, call.Name)
		}
		arguments = object
	}

	return mcp.InvokeParams{Name: call.Name, Arguments: arguments}, nil
}
