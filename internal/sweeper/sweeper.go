package sweeper

import (
	"context"
	"time"

	"github.com/Skotchmaster/taskhub_auth/internal/logging"
	"github.com/Skotchmaster/taskhub_auth/internal/metrics"
)

const DefaultInterval = time.Hour

type ExpiredSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deletes expired refresh tokens on a fixed interval. It does not
// coordinate with issuance: a token minted mid-sweep is simply not expired.
type Sweeper struct {
	Store    ExpiredSweeper
	Interval time.Duration
	Now      func() time.Time
}

func New(store ExpiredSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{Store: store, Interval: interval, Now: time.Now}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	l := logging.FromContext(ctx).With("svc", "auth.sweeper")

	n, err := s.Store.SweepExpired(ctx, s.Now().UTC())
	if err != nil {
		l.Error("sweep_failed", "error", err)
		return 0, err
	}
	metrics.RecordSwept(n)
	if n > 0 {
		l.Info("sweep_done", "deleted", n)
	}
	return n, nil
}

// Run blocks until ctx is cancelled. A failed pass is logged and retried on
// the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// Start runs the sweeper in the background. The returned stop cancels it and
// waits for an in-flight pass to finish, so the store can be closed afterwards.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
