package jsonrpc

import (
	"fmt"
)

// ErrorCode identifies the class of a failed request. Codes travel on the
// wire as strings so callers can branch on them without a lookup table.
type ErrorCode string

const (
	// ErrProtocol: the frame was not valid JSON or could not be classified
	// as a request, response, or notification.
	ErrProtocol ErrorCode = "ProtocolError"

	// ErrUnsupportedVersion: the client asked for a protocol version the
	// server does not speak.
	ErrUnsupportedVersion ErrorCode = "UnsupportedVersionError"

	// ErrNotInitialized: the request arrived before a successful initialize.
	ErrNotInitialized ErrorCode = "NotInitializedError"

	// ErrMethodNotFound: the method does not exist / is not available.
	ErrMethodNotFound ErrorCode = "MethodNotFound"

	// ErrInvalidParams: the params member could not be decoded for the method.
	ErrInvalidParams ErrorCode = "InvalidParams"

	// ErrUnknownOperation: invoke named an operation that is not registered.
	ErrUnknownOperation ErrorCode = "UnknownOperationError"

	// ErrMissingParameter: a required argument was not supplied.
	ErrMissingParameter ErrorCode = "MissingParameterError"

	// ErrTypeMismatch: an argument had the wrong JSON type.
	ErrTypeMismatch ErrorCode = "TypeMismatchError"

	// ErrUnknownParameter: an argument is not declared by the operation.
	ErrUnknownParameter ErrorCode = "UnknownParameterError"

	// ErrHandler: the operation's handler failed.
	ErrHandler ErrorCode = "HandlerError"

	// ErrCancelled: the client cancelled the request before it completed.
	ErrCancelled ErrorCode = "Cancelled"
)

// errorDetails maps error codes to their standard messages
var errorDetails = map[ErrorCode]string{
	ErrProtocol:           "Malformed frame",
	ErrUnsupportedVersion: "Unsupported protocol version",
	ErrNotInitialized:     "Server not initialized",
	ErrMethodNotFound:     "Method not found",
	ErrInvalidParams:      "Invalid params",
	ErrUnknownOperation:   "Unknown operation",
	ErrMissingParameter:   "Missing required parameter",
	ErrTypeMismatch:       "Parameter type mismatch",
	ErrUnknownParameter:   "Unknown parameter",
	ErrHandler:            "Handler failed",
	ErrCancelled:          "Request cancelled",
}

// Error represents a JSON-RPC error object
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

var _ error = &Error{}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new error with the standard message for code and
// optional data.
func NewError(code ErrorCode, data any) *Error {
	msg, ok := errorDetails[code]
	if !ok {
		msg = "Unknown error"
	}

	return &Error{
		Code:    code,
		Message: msg,
		Data:    data,
	}
}

// Errorf creates a new error whose message is built from format.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
