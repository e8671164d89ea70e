package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/folio/internal/cache"
	"github.com/utafrali/folio/internal/dispatch"
	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/metrics"
	"github.com/utafrali/folio/internal/repository"
	"github.com/utafrali/folio/internal/repository/memory"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

const day = 24 * time.Hour

// --- EditReview ---

func TestEditReview_AuthorTwoDaysLater(t *testing.T) {
	f := newFixture(t)
	f.addReview(t, "rev-2", secondRead, 2)
	f.expectModerated()
	now := posted.Add(2 * day)
	svc := f.moderationService(now)

	reviews, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(5), Comment: strPtr("A masterpiece"),
	})
	require.NoError(t, err)

	require.Len(t, reviews, 2)
	assert.Equal(t, "rev-1", reviews[0].ID, "posting order is preserved")
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, "A masterpiece", reviews[0].Comment)
	assert.Equal(t, "Rosa", reviews[0].UserName)
	assert.Equal(t, now, reviews[0].UpdatedAt)
	assert.Equal(t, posted, reviews[0].Date, "the posting date never moves")

	book := f.storedBook(t)
	assert.Equal(t, 2, book.TotalReviews)
	assert.Equal(t, 3.5, book.Rating)

	entries := f.logEntries(t)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, domain.ModerationActionEdit, entry.Action)
	assert.Equal(t, author.ID, entry.ModeratorID)
	assert.Equal(t, reader.ID, entry.TargetUserID)
	assert.Equal(t, &domain.ReviewSnapshot{Rating: 4, Comment: "Thoughtful and slow"}, entry.OldValue)
	assert.Equal(t, &domain.ReviewSnapshot{Rating: 5, Comment: "A masterpiece"}, entry.NewValue)
	assert.Empty(t, entry.Reason)

	notes := f.notificationsFor(t, reader.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationTypeReviewEdited, notes[0].Type)
	assert.Equal(t, author.ID, notes[0].SenderID)
	assert.Contains(t, notes[0].Message, "Ursula")
	assert.False(t, notes[0].Read)

	f.mailer.AssertCalled(t, "Enqueue", mock.Anything, mock.MatchedBy(func(e dispatch.Email) bool {
		return e.To == reader.Email && e.NotificationID == notes[0].ID && e.Subject == subjectReviewEdited
	}))
	f.publisher.AssertExpectations(t)
}

func TestEditReview_PartialUpdate(t *testing.T) {
	f := newFixture(t)
	f.expectModerated()
	svc := f.moderationService(posted.Add(day))

	reviews, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Comment: strPtr("edited"),
	})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)
	assert.Equal(t, "edited", reviews[0].Comment)

	entries := f.logEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].NewValue.Rating)
}

func TestEditReview_EditWindowBoundary(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		allowed bool
	}{
		{"one second before seven days", 7*day - time.Second, true},
		{"exactly seven days", 7 * day, true},
		{"one second after seven days", 7*day + time.Second, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.allowed {
				f.expectModerated()
			}
			svc := f.moderationService(posted.Add(tc.age))

			_, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
				BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(1),
			})

			if tc.allowed {
				require.NoError(t, err)
				assert.Len(t, f.logEntries(t), 1)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
			assert.Contains(t, err.Error(), "edit window expired")
			assert.Empty(t, f.logEntries(t))
			assert.Equal(t, 4, f.storedBook(t).Reviews[0].Rating)
		})
	}
}

func TestEditReview_AdminBypassesWindow(t *testing.T) {
	f := newFixture(t)
	f.expectModerated()
	svc := f.moderationService(posted.Add(30 * day))

	reviews, err := svc.EditReview(context.Background(), actorOf(admin), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reviews[0].Rating)

	entries := f.logEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, admin.ID, entries[0].ModeratorID)

	notes := f.notificationsFor(t, reader.ID)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "Ada")
}

func TestEditReview_NotPermitted(t *testing.T) {
	for _, u := range []domain.User{reader, secondRead, otherAuthor} {
		t.Run(u.ID, func(t *testing.T) {
			f := newFixture(t)
			svc := f.moderationService(posted.Add(day))

			_, err := svc.EditReview(context.Background(), actorOf(u), &EditReviewInput{
				BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(5),
			})
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
			assert.Empty(t, f.logEntries(t))
			assert.Empty(t, f.notificationsFor(t, reader.ID))
			f.mailer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		})
	}
}

func TestEditReview_InvalidRating(t *testing.T) {
	f := newFixture(t)
	svc := f.moderationService(posted.Add(day))

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
			BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(rating),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "rating %d", rating)
	}
	assert.Empty(t, f.logEntries(t))
}

func TestEditReview_NotFound(t *testing.T) {
	f := newFixture(t)
	svc := f.moderationService(posted.Add(day))
	ctx := context.Background()

	_, err := svc.EditReview(ctx, actorOf(author), &EditReviewInput{BookID: "missing", ReviewID: "rev-1", Rating: intPtr(3)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.EditReview(ctx, actorOf(author), &EditReviewInput{BookID: "book-1", ReviewID: "missing", Rating: intPtr(3)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "review with id missing")
}

// --- DeleteReview ---

func TestDeleteReview_ReasonValidation(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		valid  bool
	}{
		{"empty", "", false},
		{"four characters", "spam", false},
		{"whitespace only", "       ", false},
		{"four characters padded", "  spam \n", false},
		{"five characters", "spam!", true},
		{"five multibyte characters", "ñañañ", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.valid {
				f.expectModerated()
			}
			svc := f.moderationService(posted.Add(day))

			_, err := svc.DeleteReview(context.Background(), actorOf(author), &DeleteReviewInput{
				BookID: "book-1", ReviewID: "rev-1", Reason: tc.reason,
			})
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, 0, f.storedBook(t).TotalReviews)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 1, f.storedBook(t).TotalReviews)
			assert.Empty(t, f.logEntries(t))
		})
	}
}

func TestDeleteReview_ReasonCheckedFirst(t *testing.T) {
	f := newFixture(t)
	svc := f.moderationService(posted.Add(day))

	// A stranger deleting from a missing book still gets the reason error.
	_, err := svc.DeleteReview(context.Background(), actorOf(secondRead), &DeleteReviewInput{
		BookID: "missing", ReviewID: "missing", Reason: "bad",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeleteReview_AuthorAfterTenDaysHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	svc := f.moderationService(posted.Add(10 * day))

	_, err := svc.DeleteReview(context.Background(), actorOf(author), &DeleteReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Reason: "spam content",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 403, apperrors.HTTPStatus(err))

	book := f.storedBook(t)
	assert.Equal(t, 1, book.TotalReviews)
	assert.Equal(t, 4.0, book.Rating)
	require.Len(t, book.Reviews, 1)
	assert.Empty(t, f.logEntries(t))
	assert.Empty(t, f.notificationsFor(t, reader.ID))
	f.mailer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishReviewModerated", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteReview_AdminAfterTenDays(t *testing.T) {
	f := newFixture(t)
	f.addReview(t, "rev-2", secondRead, 2)
	f.expectModerated()
	svc := f.moderationService(posted.Add(10 * day))

	reviews, err := svc.DeleteReview(context.Background(), actorOf(admin), &DeleteReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Reason: "  spam content  ",
	})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "rev-2", reviews[0].ID)
	assert.Equal(t, "Tom", reviews[0].UserName)

	book := f.storedBook(t)
	assert.Equal(t, 1, book.TotalReviews)
	assert.Equal(t, 2.0, book.Rating)

	entries := f.logEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ModerationActionDelete, entries[0].Action)
	assert.Equal(t, "rev-1", entries[0].ReviewID)
	assert.Equal(t, "spam content", entries[0].Reason)
	assert.Equal(t, &domain.ReviewSnapshot{Rating: 4, Comment: "Thoughtful and slow"}, entries[0].OldValue)
	assert.Nil(t, entries[0].NewValue)

	notes := f.notificationsFor(t, reader.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationTypeReviewDeleted, notes[0].Type)
	assert.Contains(t, notes[0].Message, "spam content")

	f.publisher.AssertCalled(t, "PublishReviewModerated", mock.Anything,
		mock.MatchedBy(func(b *domain.Book) bool { return b.TotalReviews == 1 }),
		mock.MatchedBy(func(e *domain.ModerationLogEntry) bool { return e.Action == domain.ModerationActionDelete }),
	)
}

func TestDeleteReview_LastReviewZeroesRating(t *testing.T) {
	f := newFixture(t)
	f.expectModerated()
	svc := f.moderationService(posted.Add(day))

	reviews, err := svc.DeleteReview(context.Background(), actorOf(author), &DeleteReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Reason: "off-topic",
	})
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)

	book := f.storedBook(t)
	assert.Equal(t, 0, book.TotalReviews)
	assert.Equal(t, 0.0, book.Rating)
}

func TestDeleteReview_NotPermitted(t *testing.T) {
	f := newFixture(t)
	svc := f.moderationService(posted.Add(day))

	_, err := svc.DeleteReview(context.Background(), actorOf(reader), &DeleteReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Reason: "changed my mind",
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 1, f.storedBook(t).TotalReviews)
}

// --- Transaction envelope ---

func TestModeration_RollsBackWhenNotificationFails(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("Notifications.Create", errors.New("disk full"))
	svc := f.moderationService(posted.Add(day))
	ctx := context.Background()

	_, err := svc.EditReview(ctx, actorOf(author), &EditReviewInput{BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(1)})
	require.Error(t, err)

	_, err = svc.DeleteReview(ctx, actorOf(author), &DeleteReviewInput{BookID: "book-1", ReviewID: "rev-1", Reason: "spam content"})
	require.Error(t, err)

	book := f.storedBook(t)
	require.Len(t, book.Reviews, 1)
	assert.Equal(t, 4, book.Reviews[0].Rating)
	assert.Equal(t, 4.0, book.Rating)
	assert.Empty(t, f.logEntries(t))
	f.mailer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishReviewModerated", mock.Anything, mock.Anything, mock.Anything)
}

func TestModeration_RollsBackWhenReviewWriteFails(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("Books.DeleteReview", errors.New("connection reset"))
	svc := f.moderationService(posted.Add(day))

	_, err := svc.DeleteReview(context.Background(), actorOf(author), &DeleteReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Reason: "spam content",
	})
	require.Error(t, err)

	// The log entry and notification were written before the removal.
	assert.Empty(t, f.logEntries(t))
	assert.Empty(t, f.notificationsFor(t, reader.ID))
	assert.Equal(t, 1, f.storedBook(t).TotalReviews)
}

func TestModeration_SideEffectFailuresDoNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.publisher.On("PublishReviewModerated", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f.mailer.On("Enqueue", mock.Anything, mock.Anything).Return(nil, errors.New("delivery log unavailable"))
	svc := f.moderationService(posted.Add(day))

	reviews, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, reviews[0].Rating)
	assert.Len(t, f.logEntries(t), 1)
}

func TestModeration_NoEmailWithoutAddress(t *testing.T) {
	f := newFixture(t)
	f.addReview(t, "rev-2", secondRead, 2)
	f.publisher.On("PublishReviewModerated", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := f.moderationService(posted.Add(day))

	_, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-2", Rating: intPtr(3),
	})
	require.NoError(t, err)

	assert.Len(t, f.notificationsFor(t, secondRead.ID), 1)
	f.mailer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

// --- ListModerationLog ---

func TestListModerationLog_NewestFirstWithNames(t *testing.T) {
	f := newFixture(t)
	f.addReview(t, "rev-2", secondRead, 2)
	f.publisher.On("PublishReviewModerated", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("Enqueue", mock.Anything, mock.Anything).Return(&domain.Delivery{}, nil)
	ctx := context.Background()

	_, err := f.moderationService(posted.Add(day)).EditReview(ctx, actorOf(author), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(5),
	})
	require.NoError(t, err)
	_, err = f.moderationService(posted.Add(2*day)).DeleteReview(ctx, actorOf(admin), &DeleteReviewInput{
		BookID: "book-1", ReviewID: "rev-2", Reason: "personal attack",
	})
	require.NoError(t, err)

	entries, err := f.moderationService(posted.Add(3*day)).ListModerationLog(ctx, actorOf(author), "book-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, domain.ModerationActionDelete, entries[0].Action)
	assert.Equal(t, "Ada", entries[0].ModeratorName)
	assert.Equal(t, "Tom", entries[0].TargetUserName)
	assert.Equal(t, domain.ModerationActionEdit, entries[1].Action)
	assert.Equal(t, "Ursula", entries[1].ModeratorName)
	assert.Equal(t, "Rosa", entries[1].TargetUserName)
}

func TestListModerationLog_AuthorOnly(t *testing.T) {
	f := newFixture(t)
	svc := f.moderationService(posted)
	ctx := context.Background()

	entries, err := svc.ListModerationLog(ctx, actorOf(author), "book-1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	for _, u := range []domain.User{admin, reader, otherAuthor} {
		_, err := svc.ListModerationLog(ctx, actorOf(u), "book-1")
		assert.ErrorIs(t, err, apperrors.ErrForbidden, u.ID)
	}

	_, err = svc.ListModerationLog(ctx, actorOf(author), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNewModerationService_DefaultWindow(t *testing.T) {
	svc := NewModerationService(nil, nil, nil, nil, 0, newTestLogger())
	assert.Equal(t, domain.DefaultEditWindow, svc.editWindow)
}

// retryingStore runs every transaction body twice, the way Mongo retries a
// transaction after a transient error.
type retryingStore struct {
	*memory.Store
	attempts int
}

func (s *retryingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	s.attempts++
	_ = s.Store.WithinTx(ctx, fn)
	s.attempts++
	return s.Store.WithinTx(ctx, fn)
}

func TestModeration_RejectionCountedOncePerRequest(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.User
		at     time.Time
		reason string
	}{
		{"not permitted", otherAuthor, posted.Add(day), rejectionNotPermitted},
		{"window expired", author, posted.Add(10 * day), rejectionWindowExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			store := &retryingStore{Store: f.store}
			svc := NewModerationService(store, cache.Noop{}, f.publisher, f.mailer, domain.DefaultEditWindow, newTestLogger())
			svc.now = func() time.Time { return tc.at }

			counter := metrics.ModerationRejections.WithLabelValues(tc.reason)
			before := testutil.ToFloat64(counter)

			_, err := svc.DeleteReview(context.Background(), actorOf(tc.actor), &DeleteReviewInput{
				BookID: "book-1", ReviewID: "rev-1", Reason: "spam content",
			})
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
			assert.Equal(t, 2, store.attempts)
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestModeration_SuccessIsNotARejection(t *testing.T) {
	f := newFixture(t)
	f.expectModerated()
	svc := f.moderationService(posted.Add(day))

	notPermitted := testutil.ToFloat64(metrics.ModerationRejections.WithLabelValues(rejectionNotPermitted))
	expired := testutil.ToFloat64(metrics.ModerationRejections.WithLabelValues(rejectionWindowExpired))

	_, err := svc.EditReview(context.Background(), actorOf(author), &EditReviewInput{
		BookID: "book-1", ReviewID: "rev-1", Rating: intPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, notPermitted, testutil.ToFloat64(metrics.ModerationRejections.WithLabelValues(rejectionNotPermitted)))
	assert.Equal(t, expired, testutil.ToFloat64(metrics.ModerationRejections.WithLabelValues(rejectionWindowExpired)))
}
