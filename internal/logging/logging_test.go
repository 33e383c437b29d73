package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNoopDropsEverything(t *testing.T) {
	l := Noop()
	l.Info(context.Background(), "hello", String("k", "v"))
	l.With(Int("n", 1)).Error(context.Background(), "boom")
	// Nothing to assert beyond "does not panic" -- Noop has no observable
	// effect, which is the point of it.
}

func TestJSONHandlerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := &slogger{l: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info(context.Background(), "dispatching event", Int64("event_id", 42), String("phase", "dispatch"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v; line=%s", err, buf.String())
	}
	if decoded["msg"] != "dispatching event" {
		t.Fatalf("msg = %v, want %q", decoded["msg"], "dispatching event")
	}
	if decoded["event_id"] != float64(42) {
		t.Fatalf("event_id = %v, want 42", decoded["event_id"])
	}
}

func TestWithAppendsFields(t *testing.T) {
	var buf bytes.Buffer
	base := &slogger{l: slog.New(slog.NewJSONHandler(&buf, nil))}
	derived := base.With(String("component", "evt"))

	derived.Info(context.Background(), "tick")

	if !strings.Contains(buf.String(), `"component":"evt"`) {
		t.Fatalf("expected derived logger to carry component field, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in).Level(); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
