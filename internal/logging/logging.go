// Package logging builds the structured logger used by the library
// commands.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// levelRouter is a slog.Handler that routes INFO/WARN (and DEBUG when
// enabled) to one handler and ERROR+ to another.
type levelRouter struct {
	min    slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// Options controls New.
type Options struct {
	// Stdout and Stderr default to os.Stdout and os.Stderr.
	Stdout  io.Writer
	Stderr  io.Writer
	LogPath string
	Verbose bool
}

// New builds a logger tagged with a fresh session id. If opts.LogPath is set,
// every level is also appended to that file. The returned cleanup closes
// the file and is never nil.
func New(opts Options) (*slog.Logger, func(), error) {
	stdoutW, stderrW := opts.Stdout, opts.Stderr
	if stdoutW == nil {
		stdoutW = os.Stdout
	}
	if stderrW == nil {
		stderrW = os.Stderr
	}

	cleanup := func() {}
	if opts.LogPath != "" {
		f, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(stdoutW, f)
		stderrW = io.MultiWriter(stderrW, f)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	handler := &levelRouter{
		min:    level,
		stdout: slog.NewTextHandler(stdoutW, handlerOpts),
		stderr: slog.NewTextHandler(stderrW, handlerOpts),
	}
	return slog.New(handler).With("session", uuid.NewString()), cleanup, nil
}
