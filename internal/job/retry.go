// Package job runs the service's scheduled background work.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// DefaultRetrySchedule runs the delivery sweep every minute.
const DefaultRetrySchedule = "@every 1m"

// Retrier sends deliveries whose next attempt is due.
type Retrier interface {
	RetryDue(ctx context.Context, limit int) (int, error)
}

// RetrySweeper periodically retries pending email deliveries.
type RetrySweeper struct {
	cron    *cron.Cron
	retrier Retrier
	batch   int
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// running guards against overlapping sweeps when one takes longer than
	// the schedule interval.
	running atomic.Bool
}

// NewRetrySweeper schedules a sweep of up to batch deliveries on spec, a
// standard five-field cron expression or an @every descriptor.
func NewRetrySweeper(spec string, retrier Retrier, batch int, logger *slog.Logger) (*RetrySweeper, error) {
	if batch <= 0 {
		batch = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &RetrySweeper{
		cron:    cron.New(),
		retrier: retrier,
		batch:   batch,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule delivery retry %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *RetrySweeper) Start() {
	s.cron.Start()
	s.logger.Info("delivery retry sweeper started")
}

// Stop cancels an in-flight sweep and waits for it to return or for ctx to
// expire.
func (s *RetrySweeper) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one retry pass. It is a no-op while another pass is running.
func (s *RetrySweeper) Sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.DebugContext(ctx, "delivery retry sweep already running, skipping")
		return
	}
	defer s.running.Store(false)

	n, err := s.retrier.RetryDue(ctx, s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "delivery retry sweep failed",
			slog.Int("attempted", n),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "delivery retry sweep finished", slog.Int("attempted", n))
	}
}
