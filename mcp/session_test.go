package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattt/weather-mcp/jsonrpc"
	"github.com/mattt/weather-mcp/registry"
)

func TestSession_EndToEnd(t *testing.T) {
	session, _ := startSession(t, testRegistry(t, nil))
	ctx := context.Background()

	result, err := session.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, result.ProtocolVersion)
	assert.Equal(t, "weather-test", session.ServerInfo().Name)
	assert.Equal(t, LatestVersion, session.ProtocolVersion())

	require.NoError(t, session.Ping(ctx))

	catalog, err := session.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 3)
	assert.Equal(t, "get_current_weather", catalog[0].Name)
	assert.Equal(t, registry.TypeString, catalog[0].ParameterSchema["location"].Type)

	raw, err := session.Invoke(ctx, "get_current_weather", map[string]any{"location": "New York"})
	require.NoError(t, err)

	var weather struct {
		Location     string  `json:"location"`
		TemperatureC float64 `json:"temperature_c"`
	}
	require.NoError(t, json.Unmarshal(raw, &weather))
	assert.Equal(t, "New York, NY, USA", weather.Location)
	assert.Equal(t, 20.0, weather.TemperatureC)
}

func TestSession_RemoteErrors(t *testing.T) {
	session, _ := startSession(t, testRegistry(t, nil))
	ctx := context.Background()
	_, err := session.Initialize(ctx)
	require.NoError(t, err)

	tests := []struct {
		name     string
		op       string
		args     map[string]any
		wantErr  error
		wantCode jsonrpc.ErrorCode
	}{
		{"unknown operation", "get_tides", nil, registry.ErrUnknownOperation, jsonrpc.ErrUnknownOperation},
		{"missing parameter", "get_current_weather", nil, registry.ErrMissingParameter, jsonrpc.ErrMissingParameter},
		{"type mismatch", "get_current_weather", map[string]any{"location": 1}, registry.ErrTypeMismatch, jsonrpc.ErrTypeMismatch},
		{"unknown parameter", "get_current_weather", map[string]any{"location": "New York", "units": "f"}, registry.ErrUnknownParameter, jsonrpc.ErrUnknownParameter},
		{"handler error", "get_current_weather", map[string]any{"location": "Paris"}, ErrHandler, jsonrpc.ErrHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := session.Invoke(ctx, tt.op, tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, remoteCode(t, err))
		})
	}

	_, err = session.Invoke(ctx, "get_current_weather", map[string]any{"location": "Paris"})
	assert.Contains(t, err.Error(), "no data for Paris")
}

func TestSession_ConcurrentInvokes(t *testing.T) {
	release := make(chan struct{})
	session, _ := startSession(t, testRegistry(t, release), WithWorkers(4))
	ctx := context.Background()
	_, err := session.Initialize(ctx)
	require.NoError(t, err)

	// A blocked invocation does not hold up later ones.
	slow := make(chan error, 1)
	go func() {
		raw, err := session.Invoke(ctx, "wait", nil)
		if err == nil && string(raw) != `"released"` {
			err = fmt.Errorf("unexpected result %s", raw)
		}
		slow <- err
	}()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := session.Invoke(ctx, "get_current_weather", map[string]any{"location": "New York"})
			if assert.NoError(t, err) {
				assert.Contains(t, string(raw), "New York, NY, USA")
			}
		}()
	}
	wg.Wait()

	close(release)
	select {
	case err := <-slow:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("slow invocation never completed")
	}
}

// fakeServer is the far end of a Session, driven by hand.
type fakeServer struct {
	ch  *Channel
	out *io.PipeWriter
}

func startFake(t *testing.T, opts ...SessionOption) (*Session, *fakeServer) {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	session := NewSession(outR, inW, inW, opts...)
	fake := &fakeServer{ch: NewChannel(inR, outW), out: outW}

	t.Cleanup(func() {
		outW.Close()
		inR.Close()
		session.Close()
	})
	return session, fake
}

func (f *fakeServer) receive(t *testing.T) jsonrpc.Frame {
	t.Helper()
	frame, err := f.ch.Receive()
	require.NoError(t, err)
	return frame
}

func (f *fakeServer) reply(t *testing.T, id jsonrpc.ID, v any) {
	t.Helper()
	response, err := jsonrpc.NewResult(id, v)
	require.NoError(t, err)
	require.NoError(t, f.ch.Send(response))
}

type invokeResult struct {
	raw json.RawMessage
	err error
}

func invokeAsync(session *Session, ctx context.Context, name string) <-chan invokeResult {
	r := make(chan invokeResult, 1)
	go func() {
		raw, err := session.Invoke(ctx, name, nil)
		r <- invokeResult{raw, err}
	}()
	return r
}

func awaitInvoke(t *testing.T, r <-chan invokeResult) invokeResult {
	t.Helper()
	select {
	case got := <-r:
		return got
	case <-time.After(testTimeout):
		t.Fatal("invocation hung")
		return invokeResult{}
	}
}

func TestSession_OutOfOrderResponses(t *testing.T) {
	session, fake := startFake(t)
	ctx := context.Background()

	first := invokeAsync(session, ctx, "first")
	frameA := fake.receive(t)
	second := invokeAsync(session, ctx, "second")
	frameB := fake.receive(t)

	var paramsA, paramsB InvokeParams
	require.NoError(t, json.Unmarshal(frameA.Params, &paramsA))
	require.NoError(t, json.Unmarshal(frameB.Params, &paramsB))
	require.Equal(t, "first", paramsA.Name)
	require.Equal(t, "second", paramsB.Name)
	assert.False(t, frameA.ID.Equal(*frameB.ID))

	fake.reply(t, *frameB.ID, "B")
	fake.reply(t, *frameA.ID, "A")

	a := awaitInvoke(t, first)
	b := awaitInvoke(t, second)
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, `"A"`, string(a.raw))
	assert.Equal(t, `"B"`, string(b.raw))
}

func TestSession_ChannelClosedResolvesPending(t *testing.T) {
	session, fake := startFake(t)
	ctx := context.Background()

	pending := []<-chan invokeResult{
		invokeAsync(session, ctx, "one"),
		invokeAsync(session, ctx, "two"),
	}
	fake.receive(t)
	fake.receive(t)

	require.NoError(t, fake.out.Close())

	for _, r := range pending {
		got := awaitInvoke(t, r)
		assert.ErrorIs(t, got.err, ErrChannelClosed)
		assert.ErrorIs(t, got.err, io.EOF)
	}

	_, err := session.Invoke(ctx, "three", nil)
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestSession_MalformedFrameClosesChannel(t *testing.T) {
	session, fake := startFake(t)
	ctx := context.Background()

	r := invokeAsync(session, ctx, "one")
	fake.receive(t)

	_, err := io.WriteString(fake.out, "this is not json\n")
	require.NoError(t, err)

	got := awaitInvoke(t, r)
	assert.ErrorIs(t, got.err, ErrChannelClosed)
	assert.ErrorIs(t, got.err, ErrProtocol)
}

func TestSession_ContextCancellation(t *testing.T) {
	session, fake := startFake(t)
	ctx, cancel := context.WithCancel(context.Background())

	r := invokeAsync(session, ctx, "slow")
	request := fake.receive(t)

	cancel()
	notification := fake.receive(t)
	got := awaitInvoke(t, r)
	assert.ErrorIs(t, got.err, context.Canceled)

	assert.Equal(t, jsonrpc.KindNotification, notification.Kind())
	assert.Equal(t, MethodCancelled, notification.Method)

	var params CancelledParams
	require.NoError(t, json.Unmarshal(notification.Params, &params))
	assert.True(t, params.RequestID.Equal(*request.ID))

	// A late response for the abandoned call is ignored.
	fake.reply(t, *request.ID, "late")

	r = invokeAsync(session, context.Background(), "next")
	next := fake.receive(t)
	fake.reply(t, *next.ID, "ok")
	got = awaitInvoke(t, r)
	require.NoError(t, got.err)
	assert.Equal(t, `"ok"`, string(got.raw))
}

func TestSession_Handshake(t *testing.T) {
	t.Run("unsupported version chosen by server", func(t *testing.T) {
		session, fake := startFake(t)

		done := make(chan error, 1)
		go func() {
			_, err := session.Initialize(context.Background())
			done <- err
		}()

		request := fake.receive(t)
		assert.Equal(t, MethodInitialize, request.Method)
		fake.reply(t, *request.ID, InitializeResult{ProtocolVersion: "1999-01-01"})

		err := <-done
		assert.ErrorIs(t, err, ErrHandshake)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("server rejects version", func(t *testing.T) {
		session, _ := startSession(t, testRegistry(t, nil))
		session.protocolVersion = "1999-01-01"

		_, err := session.Initialize(context.Background())
		assert.ErrorIs(t, err, ErrHandshake)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
		assert.Equal(t, jsonrpc.ErrUnsupportedVersion, remoteCode(t, err))
	})

	t.Run("channel closes before response", func(t *testing.T) {
		session, fake := startFake(t, WithProtocolVersion("2024-11-05"))

		done := make(chan error, 1)
		go func() {
			_, err := session.Initialize(context.Background())
			done <- err
		}()

		request := fake.receive(t)
		var params InitializeParams
		require.NoError(t, json.Unmarshal(request.Params, &params))
		assert.Equal(t, "2024-11-05", params.ProtocolVersion)
		require.NoError(t, fake.out.Close())

		err := <-done
		assert.ErrorIs(t, err, ErrHandshake)
		assert.ErrorIs(t, err, ErrChannelClosed)
	})
}

func TestSession_Close(t *testing.T) {
	session, ps := startSession(t, testRegistry(t, nil))
	ctx := context.Background()
	_, err := session.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, session.Close())
	assert.NoError(t, ps.wait(t))
	assert.Equal(t, StateClosed, ps.server.State())

	_, err = session.Invoke(ctx, "get_current_weather", map[string]any{"location": "New York"})
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.False(t, errors.Is(err, ErrProtocol))
}

func TestOpen_LaunchError(t *testing.T) {
	_, err := Open(context.Background(), SpawnSpec{Command: "/nonexistent/weather-mcp"})
	assert.ErrorIs(t, err, ErrLaunch)

	_, err = Open(context.Background(), SpawnSpec{})
	assert.ErrorIs(t, err, ErrLaunch)
}

func TestOpen_CloseReadsOutputBeforeExit(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	// The fake server writes one last message only after its input closes.
	script := `cat >/dev/null; printf '%s\n' '{"jsonrpc":"2.0","method":"bye"}'`

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session, err := Open(context.Background(), SpawnSpec{Command: sh, Args: []string{"-c", script}}, WithSessionLogger(logger))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, session.Close())
	assert.Less(t, time.Since(start), 2*time.Second, "process exited without being killed")

	select {
	case <-session.readDone:
	default:
		t.Fatal("read loop still running after Close")
	}
	assert.Contains(t, logs.String(), "ignoring server message")
	assert.Contains(t, logs.String(), "method=bye")
	assert.NotContains(t, logs.String(), "channel failed")
}
