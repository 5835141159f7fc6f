package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Type is the JSON type of a parameter.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

func (t Type) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// Param describes a single named parameter of an operation.
type Param struct {
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ParamSchema maps parameter names to their descriptions.
type ParamSchema map[string]Param

// Names returns the parameter names in sorted order.
func (s ParamSchema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RequiredNames returns the names of required parameters in sorted order.
func (s ParamSchema) RequiredNames() []string {
	var names []string
	for _, name := range s.Names() {
		if s[name].Required {
			names = append(names, name)
		}
	}
	return names
}

// Document renders s as a JSON Schema object document that rejects
// undeclared properties.
func (s ParamSchema) Document() map[string]any {
	properties := make(map[string]any, len(s))
	for name, p := range s {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[name] = prop
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if required := s.RequiredNames(); len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func (s ParamSchema) compile() (*gojsonschema.Schema, error) {
	for _, name := range s.Names() {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("empty parameter name")
		}
		if !s[name].Type.valid() {
			return nil, fmt.Errorf("parameter %q has unsupported type %q", name, s[name].Type)
		}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.Document()))
	if err != nil {
		return nil, fmt.Errorf("compile parameter schema: %w", err)
	}
	return schema, nil
}

// classify turns gojsonschema results into the first ParamError, preferring
// missing parameters over type mismatches over unknown parameters.
func classify(errs []gojsonschema.ResultError) error {
	var missing, mismatched, unknown []*ParamError
	for _, re := range errs {
		switch re.Type() {
		case "required":
			missing = append(missing, &ParamError{Err: ErrMissingParameter, Param: detailProperty(re)})
		case "additional_property_not_allowed":
			unknown = append(unknown, &ParamError{Err: ErrUnknownParameter, Param: detailProperty(re)})
		default:
			mismatched = append(mismatched, &ParamError{Err: ErrTypeMismatch, Param: re.Field(), Detail: re.Description()})
		}
	}

	for _, group := range [][]*ParamError{missing, mismatched, unknown} {
		if len(group) == 0 {
			continue
		}
		slices.SortFunc(group, func(a, b *ParamError) int {
			return strings.Compare(a.Param, b.Param)
		})
		return group[0]
	}
	return nil
}

func detailProperty(re gojsonschema.ResultError) string {
	if p, ok := re.Details()["property"].(string); ok {
		return p
	}
	return re.Field()
}
