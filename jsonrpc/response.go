package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Response represents a JSON-RPC response object. Exactly one of Result and
// Error is set; a nil ID marshals as null.
type Response struct {
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      ID              `json:"id"`
}

// NewResponse creates a new Response object
func NewResponse(id ID, result json.RawMessage, err *Error) Response {
	if err == nil && result == nil {
		result = json.RawMessage("null")
	}
	return Response{
		Version: Version,
		ID:      id,
		Result:  result,
		Error:   err,
	}
}

// NewResult marshals v and wraps it in a successful response.
func NewResult(id ID, v any) (Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("marshal result: %w", err)
	}
	return NewResponse(id, data, nil), nil
}

// NewErrorResponse wraps err in a failed response.
func NewErrorResponse(id ID, err *Error) Response {
	return NewResponse(id, nil, err)
}
