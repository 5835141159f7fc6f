package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned by ParseFrame for input that is not a valid frame.
var ErrMalformed = errors.New("malformed frame")

// Kind classifies a decoded frame.
type Kind int

const (
	KindInvalid Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Frame is the union of every message that can appear on the wire.
// The kind is derived from which members are present.
type Frame struct {
	Version string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind reports what sort of message f is.
func (f Frame) Kind() Kind {
	hasOutcome := f.Result != nil || f.Error != nil
	switch {
	case f.Method != "" && hasOutcome:
		return KindInvalid
	case f.Method != "" && f.ID != nil:
		return KindRequest
	case f.Method != "":
		return KindNotification
	case f.Result != nil && f.Error != nil:
		return KindInvalid
	case hasOutcome:
		return KindResponse
	default:
		return KindInvalid
	}
}

// Request returns f as a Request. Only meaningful for KindRequest.
func (f Frame) Request() Request {
	var id ID
	if f.ID != nil {
		id = *f.ID
	}
	return Request{Version: f.Version, Method: f.Method, Params: f.Params, ID: id}
}

// Response returns f as a Response. Only meaningful for KindResponse.
func (f Frame) Response() Response {
	var id ID
	if f.ID != nil {
		id = *f.ID
	}
	return Response{Version: f.Version, Result: f.Result, Error: f.Error, ID: id}
}

// ParseFrame decodes one line of input. Errors wrap ErrMalformed.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Version != Version {
		return Frame{}, fmt.Errorf("%w: unsupported jsonrpc version %q", ErrMalformed, f.Version)
	}
	if f.Kind() == KindInvalid {
		return Frame{}, fmt.Errorf("%w: cannot determine message kind", ErrMalformed)
	}
	return f, nil
}
