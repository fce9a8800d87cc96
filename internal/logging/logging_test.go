package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in).Level(); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.With(String("pipeline", "two-part")).Info(context.Background(), "search finished",
		Int("vectors", 16),
		Float("profit", 12420),
		Bool("starved", false),
		Err(errors.New("boom")),
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record below debug, got %d:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["msg"] != "search finished" || rec["pipeline"] != "two-part" || rec["error"] != "boom" {
		t.Fatalf("record = %v", rec)
	}
	if rec["vectors"] != float64(16) || rec["profit"] != float64(12420) || rec["starved"] != false {
		t.Fatalf("record = %v", rec)
	}
}

func TestTextIsDefaultFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf}).Warn(context.Background(), "rates clamped", String("component", "c1"))
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "component=c1") {
		t.Fatalf("text output = %q", out)
	}
}

func TestErrNil(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("expected a generated run ID")
	}
	again, id2 := EnsureRunID(ctx)
	if id2 != id || RunIDFromContext(again) != id {
		t.Fatalf("run ID changed: %q then %q", id, id2)
	}

	if _, id3 := EnsureRunID(nil); id3 == "" {
		t.Fatalf("nil context should still get a run ID")
	}
	if got := RunIDFromContext(ContextWithRunID(context.Background(), "fixed")); got != "fixed" {
		t.Fatalf("RunIDFromContext = %q, want fixed", got)
	}
}

func TestWithRunLoggerAnnotates(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})
	ctx, log := WithRunLogger(ContextWithRunID(context.Background(), "run-7"), base)
	log.Info(ctx, "cycle done")

	if RunIDFromContext(ctx) != "run-7" {
		t.Fatalf("context run ID = %q", RunIDFromContext(ctx))
	}
	if !strings.Contains(buf.String(), `"run_id":"run-7"`) {
		t.Fatalf("missing run_id in %s", buf.String())
	}

	ctx, log = WithRunLogger(context.Background(), nil)
	if RunIDFromContext(ctx) == "" || log == nil {
		t.Fatalf("nil base logger should fall back to Noop with a fresh run ID")
	}
	log.Error(ctx, "dropped")
}

func TestNoopDropsEverything(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Debug(context.Background(), "a")
	log.Info(context.Background(), "b")
	log.Warn(context.Background(), "c")
	log.Error(context.Background(), "d")
}
