package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"blog-platform/backend/internal/telemetry/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &domain.SecurityEvent{Type: "x"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewEventEmitter(provider).Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
}

func attributes(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	event := &domain.SecurityEvent{
		Type:      domain.EventRefreshReuse,
		UserID:    "u1",
		SessionID: "s1",
		Detail:    "revoked token presented",
		Count:     3,
		At:        at,
	}
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if got := rec.Body().AsString(); got != "revoked token presented" {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN", rec.Severity())
	}
	attrs := attributes(rec)
	for k, want := range map[string]string{"event_type": domain.EventRefreshReuse, "user_id": "u1", "session_id": "s1"} {
		if got := attrs[k].AsString(); got != want {
			t.Errorf("attr %q = %q, want %q", k, got, want)
		}
	}
	if got := attrs["count"].AsInt64(); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestEmit_OmitsEmptyFields(t *testing.T) {
	cap := &recordCapture{}
	before := time.Now().UTC()
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), &domain.SecurityEvent{Type: domain.EventUserRevoked}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Body().Empty() {
		t.Error("body should be empty when detail is empty")
	}
	if rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v should default to now", rec.Timestamp())
	}
	attrs := attributes(rec)
	for _, k := range []string{"user_id", "session_id", "count"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("attr %q should not be set", k)
		}
	}
}
