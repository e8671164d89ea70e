package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/folio/internal/domain"
	sendermock "github.com/utafrali/folio/internal/sender/mock"
)

type mockDeliveryRepo struct {
	mock.Mock
}

func (m *mockDeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		return d.(*domain.Delivery), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDeliveryRepo) ListRetryable(ctx context.Context, now time.Time, limit int) ([]domain.Delivery, error) {
	args := m.Called(ctx, now, limit)
	if d := args.Get(0); d != nil {
		return d.([]domain.Delivery), args.Error(1)
	}
	return nil, args.Error(1)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(repo *mockDeliveryRepo, s *sendermock.MockSender, cfg Config) *Dispatcher {
	return New(repo, s, cfg, quietLogger()).WithClock(func() time.Time { return fixedNow })
}

func testEmail() Email {
	return Email{NotificationID: "notif-1", To: "reader@example.com", Subject: "Your review was edited", Body: "body"}
}

func TestEnqueue_DeliversThroughWorker(t *testing.T) {
	repo := &mockDeliveryRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	s := sendermock.NewMockSender(quietLogger())

	d := newTestDispatcher(repo, s, Config{Workers: 2, QueueSize: 4})
	d.Start(context.Background())

	del, err := d.Enqueue(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPending, del.Status)
	assert.Equal(t, "notif-1", del.NotificationID)
	assert.Equal(t, 5, del.MaxAttempts)

	require.NoError(t, d.Stop())

	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reader@example.com", sent[0].To)

	repo.AssertNumberOfCalls(t, "Update", 1)
	updated := repo.Calls[1].Arguments.Get(1).(*domain.Delivery)
	assert.Equal(t, domain.DeliveryStatusSent, updated.Status)
	assert.Equal(t, 1, updated.Attempts)
}

func TestEnqueue_SendFailureSchedulesRetry(t *testing.T) {
	repo := &mockDeliveryRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	s := sendermock.NewMockSender(quietLogger())
	s.FailWith(errors.New("relay down"))

	d := newTestDispatcher(repo, s, Config{Workers: 1, QueueSize: 1, Backoff: time.Minute})
	d.Start(context.Background())

	_, err := d.Enqueue(context.Background(), testEmail())
	require.NoError(t, err)
	require.NoError(t, d.Stop())

	updated := repo.Calls[1].Arguments.Get(1).(*domain.Delivery)
	assert.Equal(t, domain.DeliveryStatusPending, updated.Status)
	assert.Equal(t, 1, updated.Attempts)
	assert.Equal(t, "relay down", updated.LastError)
	assert.Equal(t, fixedNow.Add(time.Minute), updated.NextAttemptAt)
}

func TestEnqueue_NotStartedLeavesDeliveryPending(t *testing.T) {
	repo := &mockDeliveryRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s := sendermock.NewMockSender(quietLogger())

	d := newTestDispatcher(repo, s, Config{Workers: 1, QueueSize: 1, Backoff: time.Minute})

	del, err := d.Enqueue(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPending, del.Status)
	assert.Equal(t, fixedNow.Add(time.Minute), del.NextAttemptAt)
	assert.Empty(t, s.Sent())
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestEnqueue_AfterStopLeavesDeliveryPending(t *testing.T) {
	repo := &mockDeliveryRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s := sendermock.NewMockSender(quietLogger())

	d := newTestDispatcher(repo, s, Config{Workers: 1, QueueSize: 1})
	d.Start(context.Background())
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())

	_, err := d.Enqueue(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Empty(t, s.Sent())
}

func TestEnqueue_CreateError(t *testing.T) {
	repo := &mockDeliveryRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	s := sendermock.NewMockSender(quietLogger())

	d := newTestDispatcher(repo, s, Config{})
	_, err := d.Enqueue(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create delivery")
}

func TestRetryDue(t *testing.T) {
	repo := &mockDeliveryRepo{}
	due := []domain.Delivery{
		{ID: "del-1", Recipient: "a@example.com", Status: domain.DeliveryStatusPending, Attempts: 1, MaxAttempts: 5},
		{ID: "del-2", Recipient: "b@example.com", Status: domain.DeliveryStatusPending, Attempts: 2, MaxAttempts: 5},
	}
	repo.On("ListRetryable", mock.Anything, fixedNow, 50).Return(due, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	s := sendermock.NewMockSender(quietLogger())

	d := newTestDispatcher(repo, s, Config{})
	n, err := d.RetryDue(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, s.Sent(), 2)
	repo.AssertNumberOfCalls(t, "Update", 2)
}

func TestRetryDue_LastAttemptMarksFailed(t *testing.T) {
	repo := &mockDeliveryRepo{}
	due := []domain.Delivery{
		{ID: "del-1", Recipient: "a@example.com", Status: domain.DeliveryStatusPending, Attempts: 4, MaxAttempts: 5},
	}
	repo.On("ListRetryable", mock.Anything, fixedNow, 10).Return(due, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Delivery) bool {
		return d.Status == domain.DeliveryStatusFailed && d.Attempts == 5
	})).Return(nil)
	s := sendermock.NewMockSender(quietLogger())
	s.FailWith(errors.New("mailbox unavailable"))

	d := newTestDispatcher(repo, s, Config{})
	n, err := d.RetryDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestRetryDue_ListError(t *testing.T) {
	repo := &mockDeliveryRepo{}
	repo.On("ListRetryable", mock.Anything, fixedNow, 10).Return(nil, errors.New("db down"))

	d := newTestDispatcher(repo, sendermock.NewMockSender(quietLogger()), Config{})
	_, err := d.RetryDue(context.Background(), 10)
	assert.Error(t, err)
}

func TestNew_AppliesDefaults(t *testing.T) {
	d := New(&mockDeliveryRepo{}, sendermock.NewMockSender(quietLogger()), Config{}, quietLogger())
	assert.Equal(t, DefaultConfig(), d.cfg)
	assert.Equal(t, DefaultConfig().QueueSize, cap(d.queue))
}
