package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/folio/internal/sender"
)

// MockSender logs messages instead of sending them and always succeeds. It
// stands in for SMTP when SMTP_ENABLED is false and is used in tests to
// inspect what would have been sent.
type MockSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []sender.Message
	err  error
}

// NewMockSender creates a new mock sender.
func NewMockSender(logger *slog.Logger) *MockSender {
	return &MockSender{logger: logger}
}

// Name returns the name of this sender.
func (s *MockSender) Name() string {
	return "mock-email"
}

// FailWith makes every following Send return err. Passing nil restores
// success.
func (s *MockSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Send records and logs the message.
func (s *MockSender) Send(ctx context.Context, msg *sender.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, *msg)

	s.logger.InfoContext(ctx, "mock sender: email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Sent returns a copy of every message sent so far.
func (s *MockSender) Sent() []sender.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sender.Message(nil), s.sent...)
}
