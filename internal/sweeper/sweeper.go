// Package sweeper deletes sessions and revocation entries whose refresh token can no longer verify.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ExpiredDeleter removes rows whose expiry is before the given instant.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Result counts the rows removed by one sweep.
type Result struct {
	Sessions    int64
	Revocations int64
}

// Sweeper periodically removes expired rows. An expired refresh token fails signature
// verification on its own, so neither its session nor its revocation entry is needed any more.
type Sweeper struct {
	sessions    ExpiredDeleter
	revocations ExpiredDeleter
	grace       time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithGrace keeps rows for d after their expiry to absorb clock skew between instances.
func WithGrace(d time.Duration) Option { return func(s *Sweeper) { s.grace = d } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Sweeper) { s.now = now } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Sweeper) { s.log = l } }

// New returns a Sweeper over the session store and the revocation list.
func New(sessions, revocations ExpiredDeleter, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions:    sessions,
		revocations: revocations,
		grace:       time.Minute,
		now:         time.Now,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "sweeper")
	return s
}

// RunOnce deletes everything that expired more than the grace period ago.
// Both tables are swept even if the first one fails; the errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	cutoff := s.now().Add(-s.grace)
	var (
		res  Result
		errs []error
		err  error
	)
	if res.Sessions, err = s.sessions.DeleteExpired(ctx, cutoff); err != nil {
		errs = append(errs, err)
	}
	if res.Revocations, err = s.revocations.DeleteExpired(ctx, cutoff); err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

// Run sweeps immediately and then every interval until ctx is done. Failures are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	s.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.ErrorContext(ctx, "sweep failed", "error", err)
	}
	if res.Sessions > 0 || res.Revocations > 0 {
		s.log.InfoContext(ctx, "swept expired rows", "sessions", res.Sessions, "revocations", res.Revocations)
	}
}
