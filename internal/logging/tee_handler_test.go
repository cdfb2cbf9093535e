package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type failingWriter struct{ calls int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestNewTeeHandlerCollapsesMissingSinks(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(discardHandler); !ok {
		t.Fatal("expected discard handler when both sinks are nil")
	}
	console := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if newTeeHandler(console, nil) != console {
		t.Fatal("expected console handler to be returned unwrapped")
	}
	file := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if newTeeHandler(nil, file) != file {
		t.Fatal("expected file handler to be returned unwrapped")
	}
}

func TestTeeHandlerWritesBothSinks(t *testing.T) {
	var console, file bytes.Buffer
	logger := slog.New(newTeeHandler(
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With(String(FieldBatchID, "b1"))

	logger.Debug("session granted")
	logger.Warn("retrying upload session")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 file lines, got %d: %s", got, file.String())
	}
	if strings.Contains(console.String(), "session granted") {
		t.Fatalf("debug line leaked to console: %s", console.String())
	}
	if !strings.Contains(console.String(), `"batch_id":"b1"`) {
		t.Fatalf("expected batch attr on console, got %s", console.String())
	}
}

func TestTeeHandlerDetachesFailingFile(t *testing.T) {
	var console bytes.Buffer
	sink := &failingWriter{}
	handler := newTeeHandler(
		slog.NewJSONHandler(&console, nil),
		slog.NewJSONHandler(sink, nil),
	)
	logger := slog.New(handler)

	logger.Info("first")
	logger.Info("second")
	logger.With(String("k", "v")).Info("third")

	if sink.calls != 1 {
		t.Fatalf("expected file sink to be tried once, got %d", sink.calls)
	}
	out := console.String()
	if got := strings.Count(out, "log file unavailable"); got != 1 {
		t.Fatalf("expected one notice, got %d: %s", got, out)
	}
	for _, msg := range []string{"first", "second", "third"} {
		if !strings.Contains(out, `"msg":"`+msg+`"`) {
			t.Fatalf("console missing %q: %s", msg, out)
		}
	}
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled once only the info console remains")
	}
}
