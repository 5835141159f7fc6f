package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mattt/weather-mcp/jsonrpc"
	"github.com/mattt/weather-mcp/registry"
)

const testTimeout = 5 * time.Second

// testRegistry returns a catalog whose "wait" operation blocks until release
// is closed or its context ends.
func testRegistry(t *testing.T, release <-chan struct{}) *registry.Registry {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Operation{
		Descriptor: registry.Descriptor{
			Name:        "get_current_weather",
			Description: "Get current weather for a location",
			ParameterSchema: registry.ParamSchema{
				"location": {Type: registry.TypeString, Description: "City name or coordinates", Required: true},
			},
		},
		Handler: func(_ context.Context, args registry.Args) (any, error) {
			if args.String("location") != "New York" {
				return nil, fmt.Errorf("no data for %s", args.String("location"))
			}
			return map[string]any{
				"location":      "New York, NY, USA",
				"temperature_c": 20,
			}, nil
		},
	}))
	require.NoError(t, reg.Register(registry.Operation{
		Descriptor: registry.Descriptor{Name: "wait", Description: "Blocks until cancelled or released"},
		Handler: func(ctx context.Context, _ registry.Args) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return "released", nil
			}
		},
	}))
	require.NoError(t, reg.Register(registry.Operation{
		Descriptor: registry.Descriptor{Name: "explode", Description: "Panics"},
		Handler: func(context.Context, registry.Args) (any, error) {
			panic("kaboom")
		},
	}))
	return reg
}

type pipeServer struct {
	server *Server
	done   chan error
}

// startSession runs a Server in-process and returns a Session connected to
// it through a pair of pipes.
func startSession(t *testing.T, reg *registry.Registry, opts ...ServerOption) (*Session, *pipeServer) {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	server, err := NewServer(append([]ServerOption{WithRegistry(reg), WithServerInfo("weather-test", "1.0.0")}, opts...)...)
	require.NoError(t, err)

	ps := &pipeServer{server: server, done: make(chan error, 1)}
	go func() {
		err := server.Serve(context.Background(), NewChannel(inR, outW))
		outW.Close()
		ps.done <- err
	}()

	session := NewSession(outR, inW, inW)
	t.Cleanup(func() {
		inR.Close()
		session.Close()
	})
	return session, ps
}

func (ps *pipeServer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-ps.done:
		return err
	case <-time.After(testTimeout):
		t.Fatal("server did not stop")
		return nil
	}
}

// rawClient speaks to a Server with hand-written lines.
type rawClient struct {
	in     *io.PipeWriter
	ch     *Channel
	server *Server
	done   chan error
}

func startRaw(t *testing.T, reg *registry.Registry, opts ...ServerOption) *rawClient {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	server, err := NewServer(append([]ServerOption{WithRegistry(reg)}, opts...)...)
	require.NoError(t, err)

	c := &rawClient{in: inW, ch: NewChannel(outR, io.Discard), server: server, done: make(chan error, 1)}
	go func() {
		err := server.Serve(context.Background(), NewChannel(inR, outW))
		outW.Close()
		c.done <- err
	}()

	t.Cleanup(func() {
		inW.Close()
		outR.Close()
	})
	return c
}

func (c *rawClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(c.in, line+"\n")
	require.NoError(t, err)
}

func (c *rawClient) receive(t *testing.T) jsonrpc.Frame {
	t.Helper()

	type received struct {
		frame jsonrpc.Frame
		err   error
	}
	r := make(chan received, 1)
	go func() {
		frame, err := c.ch.Receive()
		r <- received{frame, err}
	}()

	select {
	case got := <-r:
		require.NoError(t, got.err)
		return got.frame
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for frame")
		return jsonrpc.Frame{}
	}
}

func (c *rawClient) initialize(t *testing.T) {
	t.Helper()
	c.send(t, `{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"raw","version":"0"}},"id":0}`)
	frame := c.receive(t)
	require.Nil(t, frame.Error)
	c.send(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
}

func remoteCode(t *testing.T, err error) jsonrpc.ErrorCode {
	t.Helper()
	var remote *RemoteError
	require.True(t, errors.As(err, &remote), "expected *RemoteError, got %v", err)
	return remote.Code
}
