package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/folio/internal/cache"
	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/metrics"
	"github.com/utafrali/folio/internal/policy"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
	"github.com/utafrali/folio/pkg/validator"
)

// EditReviewInput holds a moderator's changes to a review. Nil fields are
// left unchanged.
type EditReviewInput struct {
	BookID   string
	ReviewID string
	Rating   *int
	Comment  *string
}

// DeleteReviewInput identifies a review to remove and why.
type DeleteReviewInput struct {
	BookID   string
	ReviewID string
	Reason   string
}

// ModerationService lets a book's author or an admin edit and delete
// reviews. Each action is stored together with its moderation log entry and
// the reviewer's notification in one transaction; the email, the domain
// event and the cache invalidation follow the commit.
type ModerationService struct {
	store      repository.Store
	cache      cache.ReviewCache
	producer   EventPublisher
	mailer     Mailer
	editWindow time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewModerationService creates a new moderation service. A non-positive
// editWindow falls back to domain.DefaultEditWindow.
func NewModerationService(
	store repository.Store,
	reviewCache cache.ReviewCache,
	producer EventPublisher,
	mailer Mailer,
	editWindow time.Duration,
	logger *slog.Logger,
) *ModerationService {
	if editWindow <= 0 {
		editWindow = domain.DefaultEditWindow
	}
	return &ModerationService{
		store:      store,
		cache:      reviewCache,
		producer:   producer,
		mailer:     mailer,
		editWindow: editWindow,
		logger:     logger,
		now:        utcNow,
	}
}

// moderationResult is what a committed moderation action hands to the
// post-commit side effects.
type moderationResult struct {
	book         *domain.Book
	entry        *domain.ModerationLogEntry
	notification *domain.Notification
	reviewer     *domain.User
	bypassed     bool
}

// EditReview overwrites the supplied fields of a review and returns the
// book's review list.
func (s *ModerationService) EditReview(ctx context.Context, actor policy.Actor, input *EditReviewInput) ([]domain.Review, error) {
	if input.Rating != nil && !domain.ValidRating(*input.Rating) {
		return nil, validator.NewFieldError("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	now := s.now()
	var res moderationResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		book, review, bypassed, err := s.authorize(ctx, tx, actor, input.BookID, input.ReviewID, now)
		if err != nil {
			return err
		}

		oldValue := review.Snapshot()
		if input.Rating != nil {
			review.Rating = *input.Rating
		}
		if input.Comment != nil {
			review.Comment = *input.Comment
		}
		review.UpdatedAt = now
		book.Recalculate()

		if err := tx.Books().UpdateReview(ctx, book, review); err != nil {
			return err
		}

		users, err := tx.Users().GetByIDs(ctx, []string{actor.UserID, review.UserID})
		if err != nil {
			return fmt.Errorf("resolve moderation users: %w", err)
		}
		moderator := lookupUser(users, actor.UserID)
		reviewer := lookupUser(users, review.UserID)

		entry := &domain.ModerationLogEntry{
			ID:           uuid.New().String(),
			Action:       domain.ModerationActionEdit,
			BookID:       book.ID,
			ReviewID:     review.ID,
			ModeratorID:  actor.UserID,
			TargetUserID: review.UserID,
			OldValue:     oldValue,
			NewValue:     review.Snapshot(),
			CreatedAt:    now,
		}
		if err := tx.ModerationLogs().Create(ctx, entry); err != nil {
			return err
		}

		notification := &domain.Notification{
			ID:          uuid.New().String(),
			RecipientID: review.UserID,
			SenderID:    actor.UserID,
			Type:        domain.NotificationTypeReviewEdited,
			Message:     reviewEditedMessage(book.Title, displayName(moderator, actor.UserID)),
			BookID:      book.ID,
			CreatedAt:   now,
		}
		if err := tx.Notifications().Create(ctx, notification); err != nil {
			return err
		}

		res = moderationResult{book, entry, notification, reviewer, bypassed}
		return nil
	})
	if err != nil {
		countRejection(err)
		return nil, fmt.Errorf("edit review: %w", err)
	}

	s.afterCommit(ctx, &res, subjectReviewEdited)
	return namedOrPlain(ctx, s.store.Users(), s.logger, res.book.Reviews), nil
}

// DeleteReview removes a review and returns the book's remaining reviews.
func (s *ModerationService) DeleteReview(ctx context.Context, actor policy.Actor, input *DeleteReviewInput) ([]domain.Review, error) {
	reason := strings.TrimSpace(input.Reason)
	if len([]rune(reason)) < domain.MinReasonLength {
		return nil, validator.NewFieldError("reason", fmt.Sprintf("must be at least %d characters", domain.MinReasonLength))
	}

	now := s.now()
	var res moderationResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		book, review, bypassed, err := s.authorize(ctx, tx, actor, input.BookID, input.ReviewID, now)
		if err != nil {
			return err
		}

		users, err := tx.Users().GetByIDs(ctx, []string{actor.UserID, review.UserID})
		if err != nil {
			return fmt.Errorf("resolve moderation users: %w", err)
		}
		moderator := lookupUser(users, actor.UserID)
		reviewer := lookupUser(users, review.UserID)

		// The entry is written first: the review id is only recoverable
		// from the log once the review is gone.
		entry := &domain.ModerationLogEntry{
			ID:           uuid.New().String(),
			Action:       domain.ModerationActionDelete,
			BookID:       book.ID,
			ReviewID:     review.ID,
			ModeratorID:  actor.UserID,
			TargetUserID: review.UserID,
			Reason:       reason,
			OldValue:     review.Snapshot(),
			CreatedAt:    now,
		}
		if err := tx.ModerationLogs().Create(ctx, entry); err != nil {
			return err
		}

		notification := &domain.Notification{
			ID:          uuid.New().String(),
			RecipientID: review.UserID,
			SenderID:    actor.UserID,
			Type:        domain.NotificationTypeReviewDeleted,
			Message:     reviewDeletedMessage(book.Title, displayName(moderator, actor.UserID), reason),
			BookID:      book.ID,
			CreatedAt:   now,
		}
		if err := tx.Notifications().Create(ctx, notification); err != nil {
			return err
		}

		reviewID := review.ID
		book.RemoveReview(reviewID)
		book.UpdatedAt = now
		if err := tx.Books().DeleteReview(ctx, book, reviewID); err != nil {
			return err
		}

		res = moderationResult{book, entry, notification, reviewer, bypassed}
		return nil
	})
	if err != nil {
		countRejection(err)
		return nil, fmt.Errorf("delete review: %w", err)
	}

	s.afterCommit(ctx, &res, subjectReviewDeleted)
	return namedOrPlain(ctx, s.store.Users(), s.logger, res.book.Reviews), nil
}

// ListModerationLog returns the book's moderation history, newest first,
// with moderator and reviewer names.
func (s *ModerationService) ListModerationLog(ctx context.Context, actor policy.Actor, bookID string) ([]domain.ModerationLogEntry, error) {
	book, err := s.store.Books().GetByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if !policy.Allowed(actor, policy.ViewModerationLog, book) {
		return nil, apperrors.Forbidden("only the book's author can view its moderation log")
	}

	entries, err := s.store.ModerationLogs().ListByBook(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	if entries == nil {
		return []domain.ModerationLogEntry{}, nil
	}

	ids := make([]string, 0, 2*len(entries))
	for _, e := range entries {
		ids = append(ids, e.ModeratorID, e.TargetUserID)
	}
	users, err := s.store.Users().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve moderation users: %w", err)
	}
	for i := range entries {
		entries[i].ModeratorName = displayName(lookupUser(users, entries[i].ModeratorID), "")
		entries[i].TargetUserName = displayName(lookupUser(users, entries[i].TargetUserID), "")
	}
	return entries, nil
}

// authorize loads the book and review under lock and applies the permission
// and edit window checks. The bool reports whether an expired window was
// bypassed.
func (s *ModerationService) authorize(
	ctx context.Context,
	tx repository.Store,
	actor policy.Actor,
	bookID, reviewID string,
	now time.Time,
) (*domain.Book, *domain.Review, bool, error) {
	book, err := tx.Books().GetForUpdate(ctx, bookID)
	if err != nil {
		return nil, nil, false, err
	}
	if !policy.Allowed(actor, policy.ModerateReview, book) {
		return nil, nil, false, &rejection{
			reason: rejectionNotPermitted,
			err:    apperrors.Forbidden("only the book's author or an admin can moderate its reviews"),
		}
	}

	review, ok := book.FindReview(reviewID)
	if !ok {
		return nil, nil, false, apperrors.NotFound("review", reviewID)
	}

	if !review.EditWindowExpired(now, s.editWindow) {
		return book, review, false, nil
	}
	if !policy.Allowed(actor, policy.BypassEditWindow, book) {
		return nil, nil, false, &rejection{
			reason: rejectionWindowExpired,
			err:    apperrors.Forbidden("edit window expired"),
		}
	}
	return book, review, true, nil
}

// Rejection reasons, as recorded in the moderation rejections metric.
const (
	rejectionNotPermitted  = "not_permitted"
	rejectionWindowExpired = "edit_window_expired"
)

// rejection marks a moderation attempt refused by a policy check. It is
// counted once the transaction has returned, since drivers may run the
// transaction body more than once.
type rejection struct {
	reason string
	err    error
}

func (r *rejection) Error() string { return r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

func countRejection(err error) {
	var r *rejection
	if errors.As(err, &r) {
		metrics.ModerationRejections.WithLabelValues(r.reason).Inc()
	}
}

func (s *ModerationService) afterCommit(ctx context.Context, res *moderationResult, subject string) {
	entry := res.entry
	metrics.ModerationActions.WithLabelValues(entry.Action, metrics.BoolLabel(res.bypassed)).Inc()

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("action", entry.Action),
		slog.String("book_id", entry.BookID),
		slog.String("review_id", entry.ReviewID),
		slog.String("moderator_id", entry.ModeratorID),
		slog.String("target_user_id", entry.TargetUserID),
		slog.Bool("edit_window_bypassed", res.bypassed),
	)

	invalidateReviews(ctx, s.cache, s.logger, res.book.ID)

	if err := s.producer.PublishReviewModerated(ctx, res.book, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to publish review moderated event",
			slog.String("review_id", entry.ReviewID),
			slog.String("error", err.Error()),
		)
	}

	sendEmail(ctx, s.mailer, s.logger, res.reviewer, res.notification, subject)
}
