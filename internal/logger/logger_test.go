package logger

import (
	"bytes"
	"context"
	"ctchen222/tictactoe-arena/internal/config"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiHandler_FansOut(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	debug := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	warn := slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	log := slog.New(NewMultiHandler(debug, warn)).With("match.id", "m1")
	log.Info("seated")
	log.Warn("aborted")

	if !strings.Contains(debugBuf.String(), "seated") || !strings.Contains(debugBuf.String(), "aborted") {
		t.Errorf("debug handler missed records: %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "seated") {
		t.Errorf("warn handler got an info record: %q", warnBuf.String())
	}
	if !strings.Contains(warnBuf.String(), "match.id=m1") {
		t.Errorf("attrs not propagated: %q", warnBuf.String())
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	warn := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewMultiHandler(warn)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("Enabled(info) = true for a warn-only handler")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Errorf("Enabled(error) = false")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewConsoleHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewConsoleHandler(&buf, config.LogConfig{Level: "info", Format: "json"})).Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}
