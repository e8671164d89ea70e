// Package breaker guards a Sender with a circuit breaker so that a dead mail
// relay fails fast instead of tying up every dispatch worker.
package breaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/folio/internal/metrics"
	"github.com/utafrali/folio/internal/sender"
)

// ErrOpen is returned while the breaker rejects sends.
var ErrOpen = gobreaker.ErrOpenState

// Config holds configuration for the circuit breaker.
type Config struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of sends allowed in the half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once this share of sends has failed.
	FailureRatio float64

	// MinRequests is the number of sends needed before FailureRatio applies.
	MinRequests uint32
}

// DefaultConfig returns sensible defaults for a mail relay.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Sender wraps another Sender with a circuit breaker.
type Sender struct {
	next    sender.Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// New wraps next.
func New(next sender.Sender, cfg Config, logger *slog.Logger) *Sender {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.BreakerStateValue(to))
		},
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &Sender{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Name returns the wrapped sender's name.
func (s *Sender) Name() string {
	return s.next.Name()
}

// State returns the current breaker state.
func (s *Sender) State() gobreaker.State {
	return s.breaker.State()
}

// Send forwards msg unless the breaker is open.
func (s *Sender) Send(ctx context.Context, msg *sender.Message) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Send(ctx, msg)
	})
	return err
}
