package logbuf

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestLogger(max int) (*slog.Logger, *Buffer) {
	buf := New(max)
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(NewHandler(inner, buf)), buf
}

func TestCapturesBelowInnerLevel(t *testing.T) {
	logger, buf := newTestLogger(10)

	logger.Debug("very quiet")
	logger.Info("hello", "k", "v")

	entries := buf.Query(time.Time{}, slog.LevelDebug, 0)
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[1].Message != "hello" {
		t.Errorf("message = %q", entries[1].Message)
	}
	if entries[1].Attrs["k"] != "v" {
		t.Errorf("attrs = %v", entries[1].Attrs)
	}
}

func TestEviction(t *testing.T) {
	logger, buf := newTestLogger(3)
	for i := 0; i < 5; i++ {
		logger.Info("msg", "i", i)
	}

	entries := buf.Query(time.Time{}, slog.LevelDebug, 0)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want the last 3", len(entries))
	}
	if entries[0].Attrs["i"] != int64(2) && entries[0].Attrs["i"] != 2 {
		t.Errorf("oldest retained = %v", entries[0].Attrs["i"])
	}
}

func TestQueryLevelFilter(t *testing.T) {
	logger, buf := newTestLogger(10)
	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")

	entries := buf.Query(time.Time{}, slog.LevelWarn, 0)
	if len(entries) != 1 || entries[0].Message != "w" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestQueryLimit(t *testing.T) {
	logger, buf := newTestLogger(10)
	for i := 0; i < 6; i++ {
		logger.Info("msg", "i", i)
	}
	entries := buf.Query(time.Time{}, slog.LevelDebug, 2)
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
}

func TestWithAttrsAndGroup(t *testing.T) {
	logger, buf := newTestLogger(10)
	logger.With("run_id", "r-1").WithGroup("zendesk").Info("update", "agent", 7)

	entries := buf.Query(time.Time{}, slog.LevelDebug, 0)
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Attrs["run_id"] != "r-1" {
		t.Errorf("attrs = %v", entries[0].Attrs)
	}
	if _, ok := entries[0].Attrs["zendesk.agent"]; !ok {
		t.Errorf("grouped attr missing: %v", entries[0].Attrs)
	}
}
