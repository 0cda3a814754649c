package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

const (
	errorLogFile = "error.log"
	debugLogFile = "debug.log"
)

// FanoutHandler passes every record to each handler that has its level enabled.
type FanoutHandler struct {
	handlers []slog.Handler
}

func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h.WithAttrs(attrs))
	}
	return NewFanoutHandler(handlers...)
}

func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h.WithGroup(name))
	}
	return NewFanoutHandler(handlers...)
}

// SinkOptions selects where log records go besides the console.
type SinkOptions struct {
	Console  io.Writer
	Dir      string
	LogError bool
	LogDebug bool
}

type closers []io.Closer

func (c closers) Close() error {
	var result error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// NewSinks builds the console handler plus the optional error.log and debug.log
// handlers in opts.Dir. The returned closer closes the opened files.
func NewSinks(opts SinkOptions) (slog.Handler, io.Closer, error) {
	consoleOpts := *DefaultOptions
	consoleOpts.Level = slog.LevelInfo
	if opts.LogDebug {
		consoleOpts.Level = slog.LevelDebug
	}
	handlers := []slog.Handler{NewHandler(opts.Console, &consoleOpts)}

	var files closers
	if opts.LogError || opts.LogDebug {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory '%s': %w", opts.Dir, err)
		}
	}

	openSink := func(name string, level slog.Level) error {
		f, err := os.OpenFile(filepath.Join(opts.Dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		files = append(files, f)
		handlers = append(handlers, NewHandler(f, &Options{
			Level:     level,
			AddSource: true,
			MsgPrefix: "| ",
			NoColor:   true,
		}))
		return nil
	}

	if opts.LogError {
		if err := openSink(errorLogFile, slog.LevelError); err != nil {
			_ = files.Close()
			return nil, nil, err
		}
	}
	if opts.LogDebug {
		if err := openSink(debugLogFile, slog.LevelDebug); err != nil {
			_ = files.Close()
			return nil, nil, err
		}
	}

	return NewFanoutHandler(handlers...), files, nil
}
