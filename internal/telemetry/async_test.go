package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blog-platform/backend/internal/telemetry/domain"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
	err    error
	done   chan struct{}
}

func newRecordingEmitter(n int) *recordingEmitter {
	return &recordingEmitter{done: make(chan struct{}, n)}
}

func (r *recordingEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.done <- struct{}{}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("emit context has no deadline")
	}
	return r.err
}

func (r *recordingEmitter) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for emit %d of %d", i+1, n)
		}
	}
}

func TestEmitAsync_NilArguments(t *testing.T) {
	EmitAsync(nil, &domain.SecurityEvent{Type: "x"})

	em := newRecordingEmitter(1)
	EmitAsync(em, nil)
	time.Sleep(10 * time.Millisecond)
	em.mu.Lock()
	defer em.mu.Unlock()
	if len(em.events) != 0 {
		t.Errorf("expected 0 events, got %d", len(em.events))
	}
}

func TestEmitAsync_Emits(t *testing.T) {
	em := newRecordingEmitter(1)
	EmitAsync(em, &domain.SecurityEvent{Type: domain.EventRefreshReuse, UserID: "u1"})
	em.wait(t, 1)

	em.mu.Lock()
	defer em.mu.Unlock()
	if em.events[0].UserID != "u1" || em.events[0].Type != domain.EventRefreshReuse {
		t.Errorf("unexpected event %+v", em.events[0])
	}
}

func TestEmitAsync_ErrorDoesNotPanic(t *testing.T) {
	em := newRecordingEmitter(1)
	em.err = errors.New("exporter down")
	EmitAsync(em, &domain.SecurityEvent{Type: "x"})
	em.wait(t, 1)
}

func TestEmitAsync_Concurrent(t *testing.T) {
	em := newRecordingEmitter(10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(em, &domain.SecurityEvent{Type: "x"})
		}()
	}
	wg.Wait()
	em.wait(t, 10)
}
