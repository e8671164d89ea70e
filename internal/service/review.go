package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	BookID  string
	Rating  int
	Comment string
}

// ReviewService implements posting and listing reviews.
type ReviewService struct {
	store    repository.Store
	cache    cache.ReviewCache
	producer EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(store repository.Store, reviewCache cache.ReviewCache, producer EventPublisher, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		store:    store,
		cache:    reviewCache,
		producer: producer,
		logger:   logger,
		now:      utcNow,
	}
}

// CreateReview adds the caller's review to a book and returns the book's
// updated review list.
func (s *ReviewService) CreateReview(ctx context.Context, actor policy.Actor, input *CreateReviewInput) ([]domain.Review, error) {
	if !policy.Allowed(actor, policy.CreateReview, nil) {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if input.Rating == 0 {
		return nil, validator.NewFieldError("rating", "is required")
	}
	if !domain.ValidRating(input.Rating) {
		return nil, validator.NewFieldError("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	now := s.now()
	review := domain.Review{
		ID:        uuid.New().String(),
		BookID:    input.BookID,
		UserID:    actor.UserID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		Date:      now,
		UpdatedAt: now,
	}

	var book *domain.Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		book, err = tx.Books().GetForUpdate(ctx, input.BookID)
		if err != nil {
			return err
		}
		if _, exists := book.ReviewBy(actor.UserID); exists {
			return apperrors.DuplicateReview(book.ID)
		}

		book.AddReview(review)
		return tx.Books().InsertReview(ctx, book, &review)
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	metrics.ReviewsCreated.Inc()
	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("book_id", book.ID),
		slog.String("user_id", review.UserID),
		slog.Int("rating", review.Rating),
	)

	s.invalidate(ctx, book.ID)
	if err := s.producer.PublishReviewCreated(ctx, book, &review); err != nil {
		s.logger.WarnContext(ctx, "failed to publish review created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.namedOrPlain(ctx, book.Reviews), nil
}

// ListReviews returns a book's reviews in posting order with reviewer
// names, served from the cache when possible.
func (s *ReviewService) ListReviews(ctx context.Context, bookID string) ([]domain.Review, error) {
	cached, ok, err := s.cache.Get(ctx, bookID)
	if err != nil {
		s.logger.WarnContext(ctx, "review cache read failed",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
	}
	if ok {
		return cached, nil
	}

	// The generation is taken before the store read so a write committed
	// during the read makes the Set below a no-op.
	gen, genErr := s.cache.Generation(ctx, bookID)
	if genErr != nil {
		s.logger.WarnContext(ctx, "review cache generation read failed",
			slog.String("book_id", bookID),
			slog.String("error", genErr.Error()),
		)
	}

	book, err := s.store.Books().GetByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	reviews, err := withReviewerNames(ctx, s.store.Users(), book.Reviews)
	if err != nil {
		return nil, fmt.Errorf("resolve reviewer names: %w", err)
	}

	if genErr != nil {
		return reviews, nil
	}
	switch err := s.cache.Set(ctx, bookID, gen, reviews); {
	case err == nil:
	case errors.Is(err, cache.ErrStale):
		s.logger.DebugContext(ctx, "review cache write skipped, book changed during read",
			slog.String("book_id", bookID),
		)
	default:
		s.logger.WarnContext(ctx, "review cache write failed",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
	}
	return reviews, nil
}

func (s *ReviewService) invalidate(ctx context.Context, bookID string) {
	invalidateReviews(ctx, s.cache, s.logger, bookID)
}

// namedOrPlain resolves reviewer names for a response after a committed
// write. A failed lookup degrades to unnamed reviews rather than failing a
// request whose change is already stored.
func (s *ReviewService) namedOrPlain(ctx context.Context, reviews []domain.Review) []domain.Review {
	return namedOrPlain(ctx, s.store.Users(), s.logger, reviews)
}

func namedOrPlain(ctx context.Context, users repository.UserRepository, logger *slog.Logger, reviews []domain.Review) []domain.Review {
	named, err := withReviewerNames(ctx, users, reviews)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve reviewer names", slog.String("error", err.Error()))
		if reviews == nil {
			return []domain.Review{}
		}
		return reviews
	}
	return named
}

func invalidateReviews(ctx context.Context, c cache.ReviewCache, logger *slog.Logger, bookID string) {
	if err := c.Invalidate(ctx, bookID); err != nil {
		logger.WarnContext(ctx, "review cache invalidation failed",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
	}
}
