package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattt/weather-mcp/jsonrpc"
	"github.com/mattt/weather-mcp/registry"
)

var (
	// ErrProtocol is returned for input that cannot be decoded as a frame.
	ErrProtocol = errors.New("protocol error")

	// ErrUnsupportedVersion is returned when client and server share no
	// protocol version.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")

	// ErrHandler matches remote errors raised by an operation's handler.
	ErrHandler = errors.New("handler error")

	// ErrLaunch is returned when the server process cannot be started.
	ErrLaunch = errors.New("launch failed")

	// ErrHandshake is returned when initialization does not complete.
	ErrHandshake = errors.New("handshake failed")

	// ErrChannelClosed is returned for calls that cannot complete because the
	// channel is gone.
	ErrChannelClosed = errors.New("channel closed")
)

// RemoteError is an error response received from the other side of a
// session. It matches the local sentinel of the same class with errors.Is.
type RemoteError struct {
	Code    jsonrpc.ErrorCode
	Message string
	Data    any
}

func newRemoteError(e *jsonrpc.Error) *RemoteError {
	return &RemoteError{Code: e.Code, Message: e.Message, Data: e.Data}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s: %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case jsonrpc.ErrProtocol:
		return target == ErrProtocol
	case jsonrpc.ErrUnsupportedVersion:
		return target == ErrUnsupportedVersion
	case jsonrpc.ErrHandler:
		return target == ErrHandler
	case jsonrpc.ErrUnknownOperation:
		return target == registry.ErrUnknownOperation
	case jsonrpc.ErrMissingParameter:
		return target == registry.ErrMissingParameter
	case jsonrpc.ErrTypeMismatch:
		return target == registry.ErrTypeMismatch
	case jsonrpc.ErrUnknownParameter:
		return target == registry.ErrUnknownParameter
	case jsonrpc.ErrCancelled:
		return target == context.Canceled
	}
	return false
}

// errorCode maps a local error to its wire code.
func errorCode(err error) jsonrpc.ErrorCode {
	switch {
	case errors.Is(err, registry.ErrUnknownOperation):
		return jsonrpc.ErrUnknownOperation
	case errors.Is(err, registry.ErrMissingParameter):
		return jsonrpc.ErrMissingParameter
	case errors.Is(err, registry.ErrTypeMismatch):
		return jsonrpc.ErrTypeMismatch
	case errors.Is(err, registry.ErrUnknownParameter):
		return jsonrpc.ErrUnknownParameter
	default:
		return jsonrpc.ErrHandler
	}
}
