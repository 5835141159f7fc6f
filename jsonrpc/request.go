package jsonrpc

import "encoding/json"

// Version is the only JSON-RPC version spoken on the wire.
const Version = "2.0"

// Request represents a JSON-RPC request object
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id"`
}

// NewRequest creates a new Request object
func NewRequest(method string, params json.RawMessage, id ID) Request {
	return Request{
		Version: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// Notification is a request without an id. It never receives a response.
type Notification struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new Notification object
func NewNotification(method string, params json.RawMessage) Notification {
	return Notification{
		Version: Version,
		Method:  method,
		Params:  params,
	}
}
