package approval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/metrics"
)

// Sweeper periodically deletes displays that were rejected and never
// assigned, once their rejection is older than the retention period.
// Pending displays are never swept. Connection requests are kept.
type Sweeper struct {
	requests  Repository
	displays  display.Repository
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SweeperOption configures a Sweeper
type SweeperOption func(*Sweeper)

// WithSweeperClock replaces time.Now, for tests
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a retention sweeper
func NewSweeper(requests Repository, displays display.Repository, retention, interval time.Duration, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		requests:  requests,
		displays:  displays,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "retention")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweeper in the background until Stop or ctx is done
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("retention sweeper started",
		"retention", s.retention.String(),
		"interval", s.interval.String(),
	)
}

// Stop halts the background loop and waits for it to exit
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("retention sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("retention sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep and returns how many displays it deleted
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	const op = "RetentionSweeper.RunOnce"

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.requests.ListExpiredRejections(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, errors.NewError("SWEEP_FAILED", "failed to list expired rejections", op, err)
	}

	deleted := 0
	for _, id := range ids {
		d, err := s.displays.FindByID(ctx, id)
		if err != nil {
			if !errors.IsNotFound(err) {
				s.logger.Warn("failed to load display for retention", "displayID", id, "error", err)
			}
			continue
		}
		if !d.IsPending() {
			continue
		}
		if err := s.displays.Delete(ctx, d.DisplayID, d.Version); err != nil {
			s.logger.Warn("failed to delete rejected display", "displayID", id, "error", err)
			continue
		}
		deleted++
		metrics.SweptDisplays.Inc()
	}

	if deleted > 0 {
		s.logger.Info("retention sweep removed rejected displays", "count", deleted)
	}
	return deleted, nil
}
