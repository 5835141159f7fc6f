package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattt/weather-mcp/jsonrpc"
	"github.com/mattt/weather-mcp/registry"
)

// Server dispatches requests read from a Channel to the operations of a
// registry.
type Server struct {
	registry     *registry.Registry
	info         Implementation
	instructions string
	workers      int
	toolTimeout  time.Duration
	logger       *slog.Logger

	mu              sync.Mutex
	state           State
	protocolVersion string
	inflight        map[string]*invocation
}

// ServerOption configures a Server
type ServerOption func(*Server) error

// WithRegistry sets the catalog the server exposes
func WithRegistry(reg *registry.Registry) ServerOption {
	return func(s *Server) error {
		s.registry = reg
		return nil
	}
}

// WithServerInfo sets the name and version reported by initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) error {
		s.info = Implementation{Name: name, Version: version}
		return nil
	}
}

// WithInstructions sets the free-form instructions returned by initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) error {
		s.instructions = instructions
		return nil
	}
}

// WithWorkers bounds the number of handlers running at once
func WithWorkers(n int) ServerOption {
	return func(s *Server) error {
		if n < 1 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		s.workers = n
		return nil
	}
}

// WithToolTimeout bounds each handler invocation. Zero disables the limit.
func WithToolTimeout(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("tool timeout must not be negative, got %s", d)
		}
		s.toolTimeout = d
		return nil
	}
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates a new Server with the provided options
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		info:     Implementation{Name: "weather-mcp", Version: "dev"},
		workers:  runtime.NumCPU(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		inflight: make(map[string]*invocation),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.registry == nil {
		return nil, fmt.Errorf("no registry provided")
	}

	return s, nil
}

// ProtocolVersion returns the version negotiated by the last initialize.
func (s *Server) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

var _ jsonrpc.Handler = (*Server)(nil)

// Handle processes a single request and returns its response. Invocations
// run on the calling goroutine; Serve runs them on the worker pool instead.
func (s *Server) Handle(ctx context.Context, request jsonrpc.Request) *jsonrpc.Response {
	switch request.Method {
	case MethodInitialize:
		return s.handleInitialize(request)
	case MethodPing:
		if s.State() == StateClosed {
			return errorResponse(request.ID, jsonrpc.Errorf(jsonrpc.ErrNotInitialized, "server is closed"))
		}
		return resultResponse(request.ID, struct{}{})
	}

	switch state := s.State(); state {
	case StateReady:
	case StateClosed:
		return errorResponse(request.ID, jsonrpc.Errorf(jsonrpc.ErrNotInitialized, "server is closed"))
	default:
		return errorResponse(request.ID, jsonrpc.NewError(jsonrpc.ErrNotInitialized, nil))
	}

	switch request.Method {
	case MethodListOperations, MethodToolsList:
		return resultResponse(request.ID, ListOperationsResult{Operations: s.registry.Descriptors()})
	case MethodInvoke, MethodToolsCall:
		inv, rpcErr := s.prepare(ctx, request)
		if rpcErr != nil {
			return errorResponse(request.ID, rpcErr)
		}
		defer inv.cancel()
		response := s.execute(inv)
		return &response
	default:
		return errorResponse(request.ID, jsonrpc.Errorf(jsonrpc.ErrMethodNotFound, "method not found: %s", request.Method))
	}
}

func (s *Server) handleInitialize(request jsonrpc.Request) *jsonrpc.Response {
	var params InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return errorResponse(request.ID, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
		}
	}

	version := params.ProtocolVersion
	if version == "" {
		version = LatestVersion
	}
	if !IsSupportedVersion(version) {
		s.logger.Warn("rejecting unsupported protocol version", "version", version)
		return errorResponse(request.ID, &jsonrpc.Error{
			Code:    jsonrpc.ErrUnsupportedVersion,
			Message: fmt.Sprintf("unsupported protocol version %q", version),
			Data:    map[string]any{"supported": SupportedVersions},
		})
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return errorResponse(request.ID, jsonrpc.Errorf(jsonrpc.ErrNotInitialized, "server is closed"))
	}
	s.state = StateReady
	s.protocolVersion = version
	s.mu.Unlock()

	s.logger.Info("session initialized",
		"version", version,
		"client", params.ClientInfo.Name,
		"clientVersion", params.ClientInfo.Version)

	return resultResponse(request.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities: ServerCapabilities{
			Operations: &OperationsCapability{List: true, Invoke: true},
			Tools:      &ToolsCapability{ListChanged: false},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	})
}

// invocation is one accepted invoke request. Exactly one response is sent
// for it, whichever of completion or cancellation happens first.
type invocation struct {
	id     jsonrpc.ID
	name   string
	args   registry.Args
	op     registry.Operation
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// prepare decodes, looks up and validates an invoke request.
func (s *Server) prepare(ctx context.Context, request jsonrpc.Request) (*invocation, *jsonrpc.Error) {
	var params InvokeParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error())
	}
	if params.Name == "" {
		return nil, jsonrpc.Errorf(jsonrpc.ErrInvalidParams, "missing operation name")
	}

	op, err := s.registry.Lookup(params.Name)
	if err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrUnknownOperation, "unknown operation %q", params.Name)
	}

	args, err := s.registry.Validate(params.Name, params.Arguments)
	if err != nil {
		return nil, &jsonrpc.Error{Code: errorCode(err), Message: err.Error()}
	}

	var cancel context.CancelFunc
	if s.toolTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.toolTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	return &invocation{
		id:     request.ID,
		name:   params.Name,
		args:   args,
		op:     op,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

type outcome struct {
	value any
	err   error
}

// execute runs the handler and converts its outcome to a response. Panics
// and timeouts are reported as HandlerError; cancellation as Cancelled.
func (s *Server) execute(inv *invocation) jsonrpc.Response {
	start := time.Now()

	var out outcome
	if err := inv.ctx.Err(); err != nil {
		out.err = err
	} else {
		done := make(chan outcome, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- outcome{err: fmt.Errorf("panic: %v", r)}
				}
			}()
			value, err := inv.op.Handler(inv.ctx, inv.args)
			done <- outcome{value: value, err: err}
		}()

		select {
		case out = <-done:
		case <-inv.ctx.Done():
			out.err = inv.ctx.Err()
		}
	}

	logger := s.logger.With("operation", inv.name, "id", inv.id.String(), "duration", time.Since(start))

	if out.err != nil {
		code, message := jsonrpc.ErrHandler, out.err.Error()
		switch {
		case errors.Is(out.err, context.DeadlineExceeded) && s.toolTimeout > 0:
			message = fmt.Sprintf("operation timed out after %s", s.toolTimeout)
		case errors.Is(inv.ctx.Err(), context.Canceled):
			code = jsonrpc.ErrCancelled
		}
		logger.Warn("operation failed", "error", out.err)
		return jsonrpc.NewErrorResponse(inv.id, &jsonrpc.Error{Code: code, Message: message})
	}

	response, err := jsonrpc.NewResult(inv.id, out.value)
	if err != nil {
		logger.Warn("operation returned unencodable result", "error", err)
		return jsonrpc.NewErrorResponse(inv.id, &jsonrpc.Error{Code: jsonrpc.ErrHandler, Message: err.Error()})
	}
	logger.Debug("operation completed")
	return response
}

type received struct {
	frame jsonrpc.Frame
	err   error
}

// Serve reads frames from ch until a shutdown notification, end of input or
// cancellation of ctx. In-flight invocations are cancelled and awaited
// before Serve returns.
func (s *Server) Serve(ctx context.Context, ch *Channel) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan received)
	go func() {
		for {
			frame, err := ch.Receive()
			select {
			case frames <- received{frame: frame, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, ErrProtocol) {
				return
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(s.workers)

	// g.Go blocks while every worker is busy. Queueing happens off the read
	// loop so cancellations keep being read.
	var queued sync.WaitGroup

	defer func() {
		s.close()
		queued.Wait()
		g.Wait()
		s.logger.Info("server closed")
	}()

	for {
		var r received
		select {
		case <-ctx.Done():
			s.logger.Info("context done, shutting down")
			return nil
		case r = <-frames:
		}

		if r.err != nil {
			if errors.Is(r.err, ErrProtocol) {
				s.logger.Warn("malformed frame", "error", r.err)
				s.send(ch, jsonrpc.NewErrorResponse(jsonrpc.ID{}, jsonrpc.Errorf(jsonrpc.ErrProtocol, "%v", r.err)))
				continue
			}
			if errors.Is(r.err, io.EOF) {
				s.logger.Info("end of input")
				return nil
			}
			return fmt.Errorf("error reading frame: %w", r.err)
		}

		switch r.frame.Kind() {
		case jsonrpc.KindNotification:
			if s.handleNotification(ch, r.frame) {
				return nil
			}
		case jsonrpc.KindResponse:
			s.logger.Debug("ignoring unsolicited response", "id", r.frame.Response().ID.String())
		case jsonrpc.KindRequest:
			request := r.frame.Request()
			if (request.Method != MethodInvoke && request.Method != MethodToolsCall) || s.State() != StateReady {
				if response := s.Handle(ctx, request); response != nil {
					s.send(ch, *response)
				}
				continue
			}

			inv, rpcErr := s.prepare(ctx, request)
			if rpcErr != nil {
				s.send(ch, jsonrpc.NewErrorResponse(request.ID, rpcErr))
				continue
			}
			if !s.track(inv) {
				inv.cancel()
				s.send(ch, jsonrpc.NewErrorResponse(request.ID, jsonrpc.Errorf(jsonrpc.ErrProtocol, "duplicate request id %s", request.ID.GoString())))
				continue
			}

			queued.Add(1)
			go func() {
				defer queued.Done()
				g.Go(func() error {
					defer s.untrack(inv)
					response := s.execute(inv)
					inv.once.Do(func() { s.send(ch, response) })
					return nil
				})
			}()
		}
	}
}

// handleNotification reports whether the notification ends the session.
func (s *Server) handleNotification(ch *Channel, frame jsonrpc.Frame) bool {
	switch frame.Method {
	case MethodInitialized:
		s.logger.Debug("client initialized")
	case MethodCancelled:
		var params CancelledParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			s.logger.Warn("invalid cancellation", "error", err)
			return false
		}
		s.cancelInvocation(ch, params)
	case MethodShutdown:
		s.logger.Info("shutdown requested")
		return true
	default:
		s.logger.Debug("ignoring notification", "method", frame.Method)
	}
	return false
}

func (s *Server) cancelInvocation(ch *Channel, params CancelledParams) {
	s.mu.Lock()
	inv, ok := s.inflight[params.RequestID.Key()]
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("cancellation for unknown request", "id", params.RequestID.String())
		return
	}

	message := "request cancelled"
	if params.Reason != "" {
		message = params.Reason
	}
	inv.once.Do(func() {
		s.send(ch, jsonrpc.NewErrorResponse(inv.id, &jsonrpc.Error{Code: jsonrpc.ErrCancelled, Message: message}))
	})
	inv.cancel()
	s.logger.Info("request cancelled", "id", inv.id.String(), "operation", inv.name)
}

func (s *Server) track(inv *invocation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inv.id.Key()
	if _, ok := s.inflight[key]; ok {
		return false
	}
	s.inflight[key] = inv
	return true
}

func (s *Server) untrack(inv *invocation) {
	inv.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[inv.id.Key()] == inv {
		delete(s.inflight, inv.id.Key())
	}
}

// close moves the server to Closed and cancels every in-flight invocation.
func (s *Server) close() {
	s.mu.Lock()
	s.state = StateClosed
	inflight := make([]*invocation, 0, len(s.inflight))
	for _, inv := range s.inflight {
		inflight = append(inflight, inv)
	}
	s.mu.Unlock()

	for _, inv := range inflight {
		inv.cancel()
	}
}

func (s *Server) send(ch *Channel, response jsonrpc.Response) {
	if err := ch.Send(response); err != nil {
		s.logger.Error("error sending response", "id", response.ID.String(), "error", err)
	}
}

func resultResponse(id jsonrpc.ID, v any) *jsonrpc.Response {
	response, err := jsonrpc.NewResult(id, v)
	if err != nil {
		response = jsonrpc.NewErrorResponse(id, jsonrpc.NewError(jsonrpc.ErrHandler, err.Error()))
	}
	return &response
}

func errorResponse(id jsonrpc.ID, err *jsonrpc.Error) *jsonrpc.Response {
	response := jsonrpc.NewErrorResponse(id, err)
	return &response
}
