package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newMT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func bookDocument() bson.D {
	return bson.D{
		{Key: "_id", Value: "book-1"},
		{Key: "title", Value: "The Long Way"},
		{Key: "author_name", Value: "A. Writer"},
		{Key: "author_id", Value: "author-1"},
		{Key: "tags", Value: bson.A{"space"}},
		{Key: "reviews", Value: bson.A{
			bson.D{
				{Key: "_id", Value: "rev-1"},
				{Key: "user_id", Value: "user-1"},
				{Key: "rating", Value: 4},
				{Key: "comment", Value: "ok"},
				{Key: "date", Value: now.Add(-48 * time.Hour)},
			},
			bson.D{
				{Key: "_id", Value: "rev-2"},
				{Key: "user_id", Value: "user-2"},
				{Key: "rating", Value: 2},
				{Key: "comment", Value: "meh"},
				{Key: "date", Value: now.Add(-24 * time.Hour)},
			},
		}},
		{Key: "rating", Value: 3.0},
		{Key: "total_reviews", Value: 2},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}
}

func updateResult(matched int) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: matched},
		bson.E{Key: "nModified", Value: matched},
	)
}

func TestBookRepository(t *testing.T) {
	mt := newMT(t)

	mt.Run("get by id keeps review order", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "folio.books", mtest.FirstBatch, bookDocument()))

		b, err := repo.GetByID(context.Background(), "book-1")
		require.NoError(mt, err)
		assert.Equal(mt, "author-1", b.AuthorID)
		require.Len(mt, b.Reviews, 2)
		assert.Equal(mt, "rev-1", b.Reviews[0].ID)
		assert.Equal(mt, "book-1", b.Reviews[0].BookID)
		assert.Equal(mt, 2, b.TotalReviews)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "folio.books", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("get for update", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: bookDocument()}})

		b, err := repo.GetForUpdate(context.Background(), "book-1")
		require.NoError(mt, err)
		assert.Equal(mt, "The Long Way", b.Title)
	})

	mt.Run("create", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Create(context.Background(), &domain.Book{ID: "book-2", Title: "New", AuthorID: "author-1"})
		assert.NoError(mt, err)
	})

	mt.Run("insert review", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(updateResult(1))

		book := &domain.Book{ID: "book-1"}
		rv := domain.Review{ID: "rev-3", UserID: "user-3", Rating: 5, Date: now, UpdatedAt: now}
		book.AddReview(rv)

		require.NoError(mt, repo.InsertReview(context.Background(), book, &rv))
		assert.Equal(mt, now, book.UpdatedAt)
	})

	mt.Run("insert review duplicate", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(updateResult(0))

		rv := domain.Review{ID: "rev-3", UserID: "user-1", Rating: 5}
		err := repo.InsertReview(context.Background(), &domain.Book{ID: "book-1"}, &rv)
		assert.ErrorIs(mt, err, apperrors.ErrDuplicate)
	})

	mt.Run("update review missing", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(updateResult(0))

		err := repo.UpdateReview(context.Background(), &domain.Book{ID: "book-1"}, &domain.Review{ID: "gone"})
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("delete review", func(mt *mtest.T) {
		repo := NewBookRepository(mt.DB)
		mt.AddMockResponses(updateResult(1))

		assert.NoError(mt, repo.DeleteReview(context.Background(), &domain.Book{ID: "book-1"}, "rev-1"))
	})
}

func TestModerationLogRepository(t *testing.T) {
	mt := newMT(t)

	mt.Run("create and list", func(mt *mtest.T) {
		repo := NewModerationLogRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Create(context.Background(), &domain.ModerationLogEntry{
			ID: "log-1", Action: domain.ModerationActionEdit, BookID: "book-1", ReviewID: "rev-1",
			OldValue: &domain.ReviewSnapshot{Rating: 4, Comment: "ok"},
			NewValue: &domain.ReviewSnapshot{Rating: 2, Comment: "ok"},
		})
		require.NoError(mt, err)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "folio.moderation_log", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "log-2"},
				{Key: "action", Value: "delete"},
				{Key: "book_id", Value: "book-1"},
				{Key: "reason", Value: "spam content"},
				{Key: "old_value", Value: bson.D{{Key: "rating", Value: 2}, {Key: "comment", Value: "ok"}}},
				{Key: "created_at", Value: now},
			},
			bson.D{
				{Key: "_id", Value: "log-1"},
				{Key: "action", Value: "edit"},
				{Key: "book_id", Value: "book-1"},
				{Key: "old_value", Value: bson.D{{Key: "rating", Value: 4}, {Key: "comment", Value: "ok"}}},
				{Key: "new_value", Value: bson.D{{Key: "rating", Value: 2}, {Key: "comment", Value: "ok"}}},
				{Key: "created_at", Value: now.Add(-time.Hour)},
			},
		))

		entries, err := repo.ListByBook(context.Background(), "book-1")
		require.NoError(mt, err)
		require.Len(mt, entries, 2)
		assert.Equal(mt, "spam content", entries[0].Reason)
		assert.Nil(mt, entries[0].NewValue)
		assert.Equal(mt, &domain.ReviewSnapshot{Rating: 4, Comment: "ok"}, entries[1].OldValue)
	})
}

func TestNotificationRepository(t *testing.T) {
	mt := newMT(t)

	mt.Run("list by recipient", func(mt *mtest.T) {
		repo := NewNotificationRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "folio.notifications", mtest.FirstBatch, bson.D{{Key: "n", Value: 3}}),
			mtest.CreateCursorResponse(0, "folio.notifications", mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: "n-1"},
					{Key: "recipient_id", Value: "user-1"},
					{Key: "type", Value: domain.NotificationTypeReviewDeleted},
					{Key: "message", Value: "deleted"},
					{Key: "created_at", Value: now},
				}),
		)

		items, total, err := repo.ListByRecipient(context.Background(), "user-1", 1, 20)
		require.NoError(mt, err)
		assert.Equal(mt, 3, total)
		require.Len(mt, items, 1)
		assert.Equal(mt, domain.NotificationTypeReviewDeleted, items[0].Type)
	})

	mt.Run("mark read already read", func(mt *mtest.T) {
		repo := NewNotificationRepository(mt.DB)
		mt.AddMockResponses(
			updateResult(0),
			mtest.CreateCursorResponse(0, "folio.notifications", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		assert.NoError(mt, repo.MarkRead(context.Background(), "n-1", "user-1", now))
	})

	mt.Run("mark read not owned", func(mt *mtest.T) {
		repo := NewNotificationRepository(mt.DB)
		mt.AddMockResponses(
			updateResult(0),
			mtest.CreateCursorResponse(0, "folio.notifications", mtest.FirstBatch),
		)

		err := repo.MarkRead(context.Background(), "n-1", "intruder", now)
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestAppealRepository(t *testing.T) {
	mt := newMT(t)

	appeal := bson.D{
		{Key: "_id", Value: "ap-1"},
		{Key: "kind", Value: domain.AppealKindReview},
		{Key: "user_id", Value: "user-1"},
		{Key: "book_id", Value: "book-1"},
		{Key: "review_id", Value: "rev-1"},
		{Key: "message", Value: "please reconsider"},
		{Key: "status", Value: domain.AppealStatusPending},
		{Key: "created_at", Value: now},
	}

	mt.Run("list with status filter", func(mt *mtest.T) {
		repo := NewAppealRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "folio.appeals", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
			mtest.CreateCursorResponse(0, "folio.appeals", mtest.FirstBatch, appeal),
		)

		status := domain.AppealStatusPending
		items, total, err := repo.List(context.Background(), repository.AppealFilter{Status: &status, Page: 1, PerPage: 10})
		require.NoError(mt, err)
		assert.Equal(mt, 1, total)
		require.Len(mt, items, 1)
		assert.Equal(mt, "please reconsider", items[0].Message)
	})

	mt.Run("get for update", func(mt *mtest.T) {
		repo := NewAppealRepository(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: appeal}})

		a, err := repo.GetForUpdate(context.Background(), "ap-1")
		require.NoError(mt, err)
		assert.Equal(mt, domain.AppealStatusPending, a.Status)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		repo := NewAppealRepository(mt.DB)
		mt.AddMockResponses(updateResult(0))

		err := repo.Update(context.Background(), &domain.Appeal{ID: "gone"})
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository(t *testing.T) {
	mt := newMT(t)

	mt.Run("get by ids", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "folio.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "user-1"}, {Key: "name", Value: "Reader"}, {Key: "role", Value: "customer"}},
		))

		users, err := repo.GetByIDs(context.Background(), []string{"user-1", "ghost"})
		require.NoError(mt, err)
		assert.Len(mt, users, 1)
		assert.Equal(mt, "Reader", users["user-1"].Name)
	})

	mt.Run("get by id missing", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "folio.users", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "ghost")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestDeliveryRepository(t *testing.T) {
	mt := newMT(t)

	mt.Run("list retryable", func(mt *mtest.T) {
		repo := NewDeliveryRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "folio.deliveries", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "d-1"},
				{Key: "recipient", Value: "reader@example.com"},
				{Key: "status", Value: domain.DeliveryStatusPending},
				{Key: "attempts", Value: 2},
				{Key: "max_attempts", Value: 5},
				{Key: "next_attempt_at", Value: now.Add(-time.Minute)},
			},
		))

		ds, err := repo.ListRetryable(context.Background(), now, 10)
		require.NoError(mt, err)
		require.Len(mt, ds, 1)
		assert.Equal(mt, 2, ds[0].Attempts)
	})

	mt.Run("update", func(mt *mtest.T) {
		repo := NewDeliveryRepository(mt.DB)
		mt.AddMockResponses(updateResult(1))

		d := &domain.Delivery{ID: "d-1", Status: domain.DeliveryStatusSent, Attempts: 3, UpdatedAt: now}
		assert.NoError(mt, repo.Update(context.Background(), d))
	})
}

func TestPageBounds(t *testing.T) {
	skip, limit := pageBounds(3, 10)
	assert.Equal(t, int64(20), skip)
	assert.Equal(t, int64(10), limit)

	skip, limit = pageBounds(0, 0)
	assert.Equal(t, int64(0), skip)
	assert.Equal(t, int64(20), limit)
}
