package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// teeHandler writes every record to the console and, while it keeps
// accepting writes, to the log file. The first file error detaches the file
// sink and is reported once on the console.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
	broken  *atomic.Bool
}

func newTeeHandler(console, file slog.Handler) slog.Handler {
	switch {
	case console == nil && file == nil:
		return discardHandler{}
	case file == nil:
		return console
	case console == nil:
		return file
	}
	return &teeHandler{console: console, file: file, broken: new(atomic.Bool)}
}

func (h *teeHandler) fileActive() bool {
	return !h.broken.Load()
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.console.Enabled(ctx, level) {
		return true
	}
	return h.fileActive() && h.file.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var consoleErr error
	if h.console.Enabled(ctx, record.Level) {
		consoleErr = h.console.Handle(ctx, record.Clone())
	}
	if !h.fileActive() || !h.file.Enabled(ctx, record.Level) {
		return consoleErr
	}
	if err := h.file.Handle(ctx, record); err != nil && h.broken.CompareAndSwap(false, true) {
		notice := slog.NewRecord(time.Now(), slog.LevelWarn, "log file unavailable; continuing on console only", 0)
		notice.AddAttrs(Error(err))
		_ = h.console.Handle(ctx, notice)
	}
	return consoleErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs), broken: h.broken}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name), broken: h.broken}
}

// discardHandler drops all output.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
