package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOrderID(ctx, "ORD-2026-000001")

	log.Error(ctx, "order.place_failed", errors.New("boom"))

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"order_id":"ORD-2026-000001"`)
	assert.Contains(t, buf.String(), `"stack"`)
	assert.Contains(t, buf.String(), `"service":"test"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "sync.replay_failed")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})
	quiet.Warn(context.Background(), "sync.replay_failed")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden too")
	assert.Empty(t, buf.String())
}

func TestWithFieldsDoesNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := log.WithTerminalID(context.Background(), "counter-1")
	_ = log.WithFields(parent, map[string]any{"mode": "OFFLINE"})

	log.Info(parent, "parent")
	assert.Contains(t, buf.String(), `"terminal_id":"counter-1"`)
	assert.NotContains(t, buf.String(), `"mode"`)
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}

func TestWarnErrCarriesError(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithSyncMode(context.Background(), "OFFLINE")
	log.WarnErr(ctx, "sync.remote_unreachable", errors.New("dial tcp: connection refused"))

	assert.Contains(t, buf.String(), `"error":"dial tcp: connection refused"`)
	assert.Contains(t, buf.String(), `"sync_mode":"OFFLINE"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: " Console ", Output: buf})

	log.Info(log.WithInventoryID(context.Background(), "milk"), "inventory.adjusted")

	out := buf.String()
	assert.Contains(t, out, "inventory.adjusted")
	assert.Contains(t, out, "inventory_id=milk")
	assert.NotContains(t, out, `{"level"`)
}
