package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattt/weather-mcp/jsonrpc"
	"github.com/mattt/weather-mcp/registry"
)

// errSessionClosed is the cause recorded when Close ends a session.
var errSessionClosed = errors.New("session closed")

// SpawnSpec describes the server process a Session launches.
type SpawnSpec struct {
	Command string
	Args    []string
	// Env is appended to the current environment.
	Env    []string
	Dir    string
	Stderr io.Writer
}

// Session is the client side of a channel. It correlates concurrent calls
// with their responses by request id and is safe for concurrent use.
type Session struct {
	ch              *Channel
	closer          io.Closer
	cmd             *exec.Cmd
	logger          *slog.Logger
	clientInfo      Implementation
	protocolVersion string

	// readDone is closed when readLoop has stopped reading.
	readDone chan struct{}

	seq atomic.Int64

	mu         sync.Mutex
	pending    map[string]chan result
	closed     bool
	closeErr   error
	serverInfo Implementation
	negotiated string
}

type result struct {
	response jsonrpc.Response
	err      error
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionLogger sets the logger for the session
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClientInfo sets the name and version sent with initialize
func WithClientInfo(name, version string) SessionOption {
	return func(s *Session) {
		s.clientInfo = Implementation{Name: name, Version: version}
	}
}

// WithProtocolVersion sets the protocol version requested by Initialize
func WithProtocolVersion(version string) SessionOption {
	return func(s *Session) {
		s.protocolVersion = version
	}
}

// Open launches the server process described by spec and returns a Session
// over its standard streams. The process is killed if ctx ends.
func Open(ctx context.Context, spec SpawnSpec, opts ...SessionOption) (*Session, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("%w: no command", ErrLaunch)
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Dir = spec.Dir
	cmd.Stderr = spec.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %w", ErrLaunch, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", ErrLaunch, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", ErrLaunch, spec.Command, err)
	}

	s := newSession(stdout, stdin, stdin, opts...)
	s.cmd = cmd
	s.logger.Debug("server process started", "command", spec.Command, "pid", cmd.Process.Pid)
	go s.readLoop()
	return s, nil
}

// NewSession returns a Session over existing streams. closer, if non-nil,
// is closed by Close to signal end of input to the server.
func NewSession(in io.Reader, out io.Writer, closer io.Closer, opts ...SessionOption) *Session {
	s := newSession(in, out, closer, opts...)
	go s.readLoop()
	return s
}

func newSession(in io.Reader, out io.Writer, closer io.Closer, opts ...SessionOption) *Session {
	s := &Session{
		ch:              NewChannel(in, out),
		closer:          closer,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		clientInfo:      Implementation{Name: "weather-client", Version: "dev"},
		protocolVersion: LatestVersion,
		pending:         make(map[string]chan result),
		readDone:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) readLoop() {
	defer close(s.readDone)
	for {
		frame, err := s.ch.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("channel failed", "error", err)
			}
			s.fail(err)
			return
		}

		if frame.Kind() != jsonrpc.KindResponse {
			s.logger.Debug("ignoring server message", "method", frame.Method)
			continue
		}

		response := frame.Response()
		key := response.ID.Key()

		s.mu.Lock()
		slot, ok := s.pending[key]
		delete(s.pending, key)
		s.mu.Unlock()

		if !ok {
			s.logger.Debug("response for unknown request", "id", response.ID.String())
			continue
		}
		slot <- result{response: response}
	}
}

// fail closes the session and resolves every pending call with cause.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = fmt.Errorf("%w: %w", ErrChannelClosed, cause)
	pending := s.pending
	s.pending = make(map[string]chan result)
	s.mu.Unlock()

	for _, slot := range pending {
		slot <- result{err: s.closeErr}
	}
}

func (s *Session) forget(key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var data json.RawMessage
	if params != nil {
		var err error
		if data, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("error encoding %s params: %w", method, err)
		}
	}

	id := jsonrpc.Int64ID(s.seq.Add(1))
	key := id.Key()
	slot := make(chan result, 1)

	s.mu.Lock()
	if s.closed {
		err := s.closeErr
		s.mu.Unlock()
		return nil, err
	}
	s.pending[key] = slot
	s.mu.Unlock()

	if err := s.ch.Send(jsonrpc.NewRequest(method, data, id)); err != nil {
		s.forget(key)
		return nil, fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}

	select {
	case r := <-slot:
		if r.err != nil {
			return nil, r.err
		}
		if r.response.Error != nil {
			return nil, newRemoteError(r.response.Error)
		}
		return r.response.Result, nil
	case <-ctx.Done():
		s.forget(key)
		cancelled := CancelledParams{RequestID: id, Reason: ctx.Err().Error()}
		if err := s.notify(MethodCancelled, cancelled); err != nil {
			s.logger.Debug("error sending cancellation", "id", id.String(), "error", err)
		}
		return nil, ctx.Err()
	}
}

func (s *Session) notify(method string, params any) error {
	var data json.RawMessage
	if params != nil {
		var err error
		if data, err = json.Marshal(params); err != nil {
			return fmt.Errorf("error encoding %s params: %w", method, err)
		}
	}
	return s.ch.Send(jsonrpc.NewNotification(method, data))
}

// Initialize performs the handshake. Errors match ErrHandshake.
func (s *Session) Initialize(ctx context.Context) (InitializeResult, error) {
	raw, err := s.call(ctx, MethodInitialize, InitializeParams{
		ProtocolVersion: s.protocolVersion,
		ClientInfo:      s.clientInfo,
	})
	if err != nil {
		return InitializeResult{}, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	var res InitializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return InitializeResult{}, fmt.Errorf("%w: %w: %w", ErrHandshake, ErrProtocol, err)
	}
	if !IsSupportedVersion(res.ProtocolVersion) {
		return InitializeResult{}, fmt.Errorf("%w: %w: server chose %q", ErrHandshake, ErrUnsupportedVersion, res.ProtocolVersion)
	}

	s.mu.Lock()
	s.serverInfo = res.ServerInfo
	s.negotiated = res.ProtocolVersion
	s.mu.Unlock()

	if err := s.notify(MethodInitialized, nil); err != nil {
		return InitializeResult{}, fmt.Errorf("%w: %w: %w", ErrHandshake, ErrChannelClosed, err)
	}

	s.logger.Info("session initialized", "server", res.ServerInfo.Name, "version", res.ProtocolVersion)
	return res, nil
}

// ServerInfo returns the server identity reported by Initialize.
func (s *Session) ServerInfo() Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// ProtocolVersion returns the version negotiated by Initialize.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiated
}

// Ping checks that the server is responsive.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.call(ctx, MethodPing, nil)
	return err
}

// ListOperations returns the server's catalog in registration order.
func (s *Session) ListOperations(ctx context.Context) ([]registry.Descriptor, error) {
	raw, err := s.call(ctx, MethodListOperations, nil)
	if err != nil {
		return nil, err
	}

	var res ListOperationsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %w", ErrProtocol, err)
	}
	return res.Operations, nil
}

// Invoke calls the named operation and returns its raw JSON result. Remote
// failures are returned as *RemoteError.
func (s *Session) Invoke(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	return s.call(ctx, MethodInvoke, InvokeParams{Name: name, Arguments: args})
}

// Close ends the session. A shutdown notification is sent if the channel is
// still open, then the server's input is closed. A launched process gets two
// seconds to exit before it is killed.
func (s *Session) Close() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		if err := s.notify(MethodShutdown, nil); err != nil {
			s.logger.Debug("error sending shutdown", "error", err)
		}
	}
	s.fail(errSessionClosed)

	var firstErr error
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			firstErr = err
		}
	}

	if s.cmd != nil {
		if err := s.wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// wait reaps the server process. Its output is read to the end first, since
// cmd.Wait closes the stdout pipe.
func (s *Session) wait() error {
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	killed := false
	kill := func() {
		if killed {
			return
		}
		killed = true
		s.logger.Warn("server did not exit, killing", "pid", s.cmd.Process.Pid)
		_ = s.cmd.Process.Kill()
	}

	select {
	case <-s.readDone:
	case <-timer.C:
		kill()
		<-s.readDone
	}

	done := make(chan error, 1)
	go func() {
		done <- s.cmd.Wait()
	}()
	if killed {
		<-done
		return nil
	}
	select {
	case err := <-done:
		return err
	case <-timer.C:
		kill()
		<-done
		return nil
	}
}
