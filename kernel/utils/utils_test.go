package utils

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		if id == "" {
			t.Fatal("empty id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d draws: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestWrapError(t *testing.T) {
	base := errors.New("socket closed")
	wrapped := WrapError(base, "send failed")

	if !errors.Is(wrapped, base) {
		t.Error("wrapped error must unwrap to the cause")
	}
	if got := wrapped.Error(); got != "send failed: socket closed" {
		t.Errorf("unexpected message %q", got)
	}

	if got := WrapError(nil, "standalone").Error(); got != "standalone" {
		t.Errorf("nil cause: got %q", got)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: WARN, Component: "test", Output: &buf})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestLogger_FieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: DEBUG, Component: "chat", Output: &buf})

	logger.Info("Message accepted", String("room", "lobby"), Int("count", 3))

	out := buf.String()
	for _, want := range []string{"[chat]", "Message accepted", `room="lobby"`, "count=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: INFO, Component: "kernel", Output: &buf})

	logger.Named("perf").Info("ready")

	if !strings.Contains(buf.String(), "[perf]") {
		t.Errorf("named logger kept the parent component: %q", buf.String())
	}
}

func TestGracefulShutdown_RunsAllHooks(t *testing.T) {
	quiet := NewLogger(LoggerConfig{Level: FATAL, Component: "test", Output: &bytes.Buffer{}})
	g := NewGracefulShutdown(time.Second, quiet)

	var mu sync.Mutex
	ran := make(map[string]bool)
	for _, name := range []string{"api", "voice", "controller"} {
		n := name
		g.Register(func() error {
			mu.Lock()
			ran[n] = true
			mu.Unlock()
			return nil
		})
	}

	if err := g.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 3 {
		t.Errorf("expected 3 hooks to run, got %d", len(ran))
	}
}

func TestGracefulShutdown_TimesOut(t *testing.T) {
	quiet := NewLogger(LoggerConfig{Level: FATAL, Component: "test", Output: &bytes.Buffer{}})
	g := NewGracefulShutdown(50*time.Millisecond, quiet)

	g.Register(func() error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	if err := g.Shutdown(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestGracefulShutdown_HookErrorDoesNotAbort(t *testing.T) {
	quiet := NewLogger(LoggerConfig{Level: FATAL, Component: "test", Output: &bytes.Buffer{}})
	g := NewGracefulShutdown(time.Second, quiet)

	var ran bool
	g.Register(func() error { ran = true; return nil })
	g.Register(func() error { return errors.New("close failed") })

	if err := g.Shutdown(context.Background()); err != nil {
		t.Fatalf("hook errors are logged, not propagated: %v", err)
	}
	if !ran {
		t.Error("a failing hook must not stop the others")
	}
}
