package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memDeleter struct {
	mu      sync.Mutex
	expires []time.Time
	err     error
	calls   int
}

func (m *memDeleter) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	kept := m.expires[:0]
	var n int64
	for _, e := range m.expires {
		if e.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.expires = kept
	return n, nil
}

func (m *memDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRunOnce_RemovesOnlyExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := &memDeleter{expires: []time.Time{now.Add(-time.Hour), now.Add(time.Hour), now.Add(-30 * time.Second)}}
	revs := &memDeleter{expires: []time.Time{now.Add(-2 * time.Hour), now.Add(time.Minute)}}
	s := New(sessions, revs, WithClock(func() time.Time { return now }))

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Sessions != 1 || res.Revocations != 1 {
		t.Errorf("result = %+v, want 1 session and 1 revocation", res)
	}
	// The session that expired 30s ago is inside the default one-minute grace.
	if len(sessions.expires) != 2 {
		t.Errorf("remaining sessions = %d, want 2", len(sessions.expires))
	}
}

func TestRunOnce_ZeroGrace(t *testing.T) {
	now := time.Now()
	sessions := &memDeleter{expires: []time.Time{now.Add(-time.Second)}}
	s := New(sessions, &memDeleter{}, WithGrace(0), WithClock(func() time.Time { return now }))
	if res, _ := s.RunOnce(context.Background()); res.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", res.Sessions)
	}
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("db down")
	sessions := &memDeleter{err: boom}
	revs := &memDeleter{expires: []time.Time{time.Now().Add(-time.Hour)}}
	res, err := New(sessions, revs).RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("want joined error containing %v, got %v", boom, err)
	}
	if res.Revocations != 1 {
		t.Errorf("revocations swept = %d, want 1", res.Revocations)
	}
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	sessions, revs := &memDeleter{}, &memDeleter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(sessions, revs).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sessions.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
