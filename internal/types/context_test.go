package types

import (
	"context"
	"testing"
	"time"
)

// mockLogger implements the Logger interface for testing purposes.
type mockLogger struct {
	messages []string
}

func (m *mockLogger) Info(msg string, args ...any)  { m.messages = append(m.messages, "info:"+msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.messages = append(m.messages, "error:"+msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.messages = append(m.messages, "warn:"+msg) }
func (m *mockLogger) With(args ...any) Logger       { return m }

func TestWithIdentity_GetIdentity(t *testing.T) {
	identity := UserIdentity{ID: "3f1c0a9e-user", Email: "reader@example.com"}
	ctx := WithIdentity(context.Background(), identity)

	got, ok := GetIdentity(ctx)
	if !ok {
		t.Fatal("expected identity to be present")
	}
	if got != identity {
		t.Errorf("GetIdentity() = %+v, want %+v", got, identity)
	}
}

func TestGetIdentity_Missing(t *testing.T) {
	got, ok := GetIdentity(context.Background())
	if ok {
		t.Error("expected ok=false on empty context")
	}
	if got.ID != "" {
		t.Errorf("expected zero identity, got %+v", got)
	}
}

func TestRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("empty context request id = %q", got)
	}
	ctx := WithRequestID(context.Background(), "req-abc")
	if got := GetRequestID(ctx); got != "req-abc" {
		t.Errorf("GetRequestID() = %q, want req-abc", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Error("expected nil logger on empty context")
	}

	l := &mockLogger{}
	ctx := WithLogger(context.Background(), l)
	got := LoggerFromContext(ctx)
	if got == nil {
		t.Fatal("expected logger")
	}
	got.Info("hello")
	if len(l.messages) != 1 || l.messages[0] != "info:hello" {
		t.Errorf("messages = %v", l.messages)
	}
}

func TestClocks(t *testing.T) {
	if loc := (RealClock{}).Now().Location(); loc != time.UTC {
		t.Errorf("RealClock location = %v, want UTC", loc)
	}
	fixed := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	if got := (FixedClock{T: fixed}).Now(); !got.Equal(fixed) {
		t.Errorf("FixedClock.Now() = %v, want %v", got, fixed)
	}
}
