package mock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/folio/internal/sender"
)

func TestMockSender(t *testing.T) {
	s := NewMockSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, &sender.Message{To: "a@example.com", Subject: "hi"}))

	s.FailWith(errors.New("down"))
	assert.EqualError(t, s.Send(ctx, &sender.Message{To: "b@example.com"}), "down")

	s.FailWith(nil)
	require.NoError(t, s.Send(ctx, &sender.Message{To: "c@example.com"}))

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Equal(t, "c@example.com", sent[1].To)
	assert.Equal(t, "mock-email", s.Name())
}
