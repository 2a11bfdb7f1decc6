package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"daily-trivia/internal/telemetry/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &domain.Event{EventType: "x"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	created := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	event := &domain.Event{
		ID:        "e1",
		RequestID: "req-1",
		EventType: domain.EventTypeHTTPRequest,
		Source:    "http",
		Metadata:  json.RawMessage(`{"status":200}`),
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec

	if got := rec.Body().AsBytes(); string(got) != `{"status":200}` {
		t.Errorf("body = %q, want %q", got, event.Metadata)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	want := map[string]string{
		"event_id": "e1", "request_id": "req-1", "event_type": "http_request", "source": "http",
	}
	attrs := attributes(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	if err := em.Emit(context.Background(), &domain.Event{EventType: "ping"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec
	if !rec.Body().Empty() {
		t.Error("body should be empty when metadata is nil")
	}
	attrs := attributes(rec)
	if len(attrs) != 1 || attrs["event_type"] != "ping" {
		t.Errorf("attributes = %v, want only event_type", attrs)
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &domain.Event{EventType: "test"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := capture.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}
