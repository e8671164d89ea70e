// Package dispatch sends notification emails off the request path. Every
// email is first recorded as a pending Delivery; a bounded pool of workers
// then attempts it and records the outcome. Deliveries that could not be
// queued or that failed are picked up again by RetryDue.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/metrics"
	"github.com/utafrali/folio/internal/repository"
	"github.com/utafrali/folio/internal/sender"
)

// Config controls the worker pool and the retry policy.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Backoff is the delay before the first retry. It doubles per attempt.
	Backoff     time.Duration
	SendTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   256,
		MaxAttempts: 5,
		Backoff:     time.Minute,
		SendTimeout: 15 * time.Second,
	}
}

// Email is a request to send one email for a notification.
type Email struct {
	NotificationID string
	To             string
	Subject        string
	Body           string
}

// Dispatcher owns the delivery queue and its workers.
type Dispatcher struct {
	deliveries repository.DeliveryRepository
	sender     sender.Sender
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	queue chan *domain.Delivery

	mu      sync.RWMutex
	started bool
	closed  bool
	group   errgroup.Group
}

// New creates a dispatcher. Call Start before enqueuing.
func New(deliveries repository.DeliveryRepository, s sender.Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}

	return &Dispatcher{
		deliveries: deliveries,
		sender:     s,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		queue:      make(chan *domain.Delivery, cfg.QueueSize),
	}
}

// WithClock replaces the time source. Used by tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Start launches the workers. Deliveries are drained until Stop is called,
// even after ctx is canceled, so that queued mail is not lost on shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	workCtx := context.WithoutCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.group.Go(func() error {
			for del := range d.queue {
				metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
				d.deliver(workCtx, del)
			}
			return nil
		})
	}

	d.logger.Info("email dispatcher started",
		slog.Int("workers", d.cfg.Workers),
		slog.Int("queue_size", d.cfg.QueueSize),
	)
}

// Stop closes the queue and waits for the workers to finish what is queued.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	return d.group.Wait()
}

// Enqueue records the email as a pending delivery and hands it to a worker.
// When the queue is full or the dispatcher is stopped the delivery stays
// pending for RetryDue. An error means the delivery could not be recorded.
func (d *Dispatcher) Enqueue(ctx context.Context, email Email) (*domain.Delivery, error) {
	now := d.now()
	del := &domain.Delivery{
		ID:             uuid.New().String(),
		NotificationID: email.NotificationID,
		Recipient:      email.To,
		Subject:        email.Subject,
		Body:           email.Body,
		Status:         domain.DeliveryStatusPending,
		MaxAttempts:    d.cfg.MaxAttempts,
		// The sweeper skips the delivery while a worker holds it.
		NextAttemptAt: now.Add(d.cfg.Backoff),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := d.deliveries.Create(ctx, del); err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}

	queued := *del
	if !d.offer(&queued) {
		metrics.EmailDeliveries.WithLabelValues("deferred").Inc()
		d.logger.WarnContext(ctx, "dispatch queue full, delivery deferred to retry sweep",
			slog.String("delivery_id", del.ID),
		)
	}
	return del, nil
}

func (d *Dispatcher) offer(del *domain.Delivery) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || !d.started {
		return false
	}

	select {
	case d.queue <- del:
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		return false
	}
}

// RetryDue sends up to limit pending deliveries whose next attempt is due.
// It runs synchronously in the caller's goroutine and returns how many were
// attempted.
func (d *Dispatcher) RetryDue(ctx context.Context, limit int) (int, error) {
	due, err := d.deliveries.ListRetryable(ctx, d.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list retryable deliveries: %w", err)
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		d.deliver(ctx, &due[i])
	}
	return len(due), nil
}

func (d *Dispatcher) deliver(ctx context.Context, del *domain.Delivery) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err := d.sender.Send(sendCtx, &sender.Message{
		To:      del.Recipient,
		Subject: del.Subject,
		Body:    del.Body,
	})
	cancel()

	now := d.now()
	log := d.logger.With(
		slog.String("delivery_id", del.ID),
		slog.String("notification_id", del.NotificationID),
		slog.String("sender", d.sender.Name()),
	)

	if err != nil {
		del.RecordFailure(err, now, d.cfg.Backoff)
		if del.Status == domain.DeliveryStatusFailed {
			metrics.EmailDeliveries.WithLabelValues("failed").Inc()
			log.ErrorContext(ctx, "email delivery failed permanently",
				slog.Int("attempts", del.Attempts),
				slog.String("error", err.Error()),
			)
		} else {
			metrics.EmailDeliveries.WithLabelValues("retry").Inc()
			log.WarnContext(ctx, "email delivery failed, will retry",
				slog.Int("attempts", del.Attempts),
				slog.Time("next_attempt_at", del.NextAttemptAt),
				slog.String("error", err.Error()),
			)
		}
	} else {
		del.RecordSuccess(now)
		metrics.EmailDeliveries.WithLabelValues("sent").Inc()
		log.DebugContext(ctx, "email delivered", slog.Int("attempts", del.Attempts))
	}

	if err := d.deliveries.Update(ctx, del); err != nil {
		log.ErrorContext(ctx, "failed to record delivery outcome", slog.String("error", err.Error()))
	}
}
