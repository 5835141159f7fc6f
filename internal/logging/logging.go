// Package logging builds the structured loggers shared by the commands.
// Logs always go to stderr or a file; stdout carries protocol frames.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json", case-insensitively. An empty string
// is text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want text or json)", s)
	}
}

// New returns a debug-level logger writing to w when verbose is set, and a
// logger that discards everything otherwise.
func New(w io.Writer, verbose bool, format Format) *slog.Logger {
	if !verbose {
		return Discard()
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that writes nothing.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
