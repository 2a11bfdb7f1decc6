package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"daily-trivia/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

func waitFor(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for emit %d of %d", i+1, n)
		}
	}
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(context.Background(), nil, &domain.Event{EventType: "test"}, nil)
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(context.Background(), emitter, nil, nil)

	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	event := &domain.Event{ID: "e1", RequestID: "req-1", EventType: "test_event", Source: "test"}

	EmitAsync(context.Background(), emitter, event, nil)
	waitFor(t, emitter.done, 1)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].RequestID != "req-1" {
		t.Errorf("request id = %q, want %q", events[0].RequestID, "req-1")
	}
	if events[0].EventType != "test_event" {
		t.Errorf("event type = %q, want %q", events[0].EventType, "test_event")
	}
}

func TestEmitAsync_IgnoresRequestCancellation(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1), delay: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(ctx, emitter, &domain.Event{EventType: "test"}, nil)
	waitFor(t, emitter.done, 1)

	if events := emitter.getEvents(); len(events) != 1 {
		t.Errorf("expected 1 event after request cancellation, got %d", len(events))
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1), emitErr: errors.New("broker down")}
	EmitAsync(context.Background(), emitter, &domain.Event{EventType: "test"}, nil)
	waitFor(t, emitter.done, 1)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 10)}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(context.Background(), emitter, &domain.Event{EventType: "test"}, nil)
		}()
	}
	wg.Wait()
	waitFor(t, emitter.done, 10)

	if events := emitter.getEvents(); len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("kafka down")}
	m := Multi(ok, nil, failing)

	err := m.Emit(context.Background(), &domain.Event{EventType: "test"})
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("Emit err = %v, want kafka down", err)
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Errorf("events = %d, %d; want 1, 1", len(ok.getEvents()), len(failing.getEvents()))
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := Multi().Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("empty Multi Emit: %v", err)
	}
}
