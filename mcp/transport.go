package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mattt/weather-mcp/jsonrpc"
)

// maxFrameSize bounds a single line of input.
const maxFrameSize = 1024 * 1024

// Channel carries newline-delimited JSON-RPC frames over a reader and a
// writer. Send is safe for concurrent use; Receive must be called from a
// single goroutine at a time.
type Channel struct {
	reader *bufio.Reader

	mu     sync.Mutex
	writer *json.Encoder
	bufOut *bufio.Writer
}

// NewChannel creates a Channel reading frames from in and writing them to out.
func NewChannel(in io.Reader, out io.Writer) *Channel {
	bufOut := bufio.NewWriter(out)
	writer := json.NewEncoder(bufOut)
	writer.SetEscapeHTML(false)

	return &Channel{
		reader: bufio.NewReaderSize(in, 64*1024),
		writer: writer,
		bufOut: bufOut,
	}
}

// Send writes v as one line and flushes it.
func (c *Channel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.Encode(v); err != nil {
		return fmt.Errorf("error encoding frame: %w", err)
	}
	if err := c.bufOut.Flush(); err != nil {
		return fmt.Errorf("error writing frame: %w", err)
	}
	return nil
}

// Receive blocks until the next frame is available. A malformed or
// oversized line yields an error wrapping ErrProtocol and the following call
// reads the next line. End of input yields io.EOF.
func (c *Channel) Receive() (jsonrpc.Frame, error) {
	for {
		line, err := c.readLine()
		if err != nil {
			return jsonrpc.Frame{}, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		frame, err := jsonrpc.ParseFrame(line)
		if err != nil {
			return jsonrpc.Frame{}, fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		return frame, nil
	}
}

// readLine returns the next line, copied out of the reader. A line longer than
// maxFrameSize is consumed through its newline and reported as ErrProtocol.
func (c *Channel) readLine() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := c.reader.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimSuffix(chunk, []byte("\n"))) > maxFrameSize {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 && !tooLong {
				return nil, io.EOF
			}
		default:
			return nil, fmt.Errorf("error reading frame: %w", err)
		}

		if tooLong {
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrProtocol, maxFrameSize)
		}
		return line, nil
	}
}
