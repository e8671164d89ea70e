package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/folio/internal/domain"
	pkgkafka "github.com/utafrali/folio/pkg/kafka"
	"github.com/utafrali/folio/pkg/logger"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewCreated  = "folio.review.created"
	TopicReviewEdited   = "folio.review.edited"
	TopicReviewDeleted  = "folio.review.deleted"
	TopicAppealFiled    = "folio.appeal.filed"
	TopicAppealResolved = "folio.appeal.resolved"
)

// Aggregate types.
const (
	AggregateTypeBook   = "book"
	AggregateTypeAppeal = "appeal"
)

// SourceReviewService identifies events originating from this service.
const SourceReviewService = "review-service"

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	BookID       string  `json:"bookId"`
	ReviewID     string  `json:"reviewId"`
	UserID       string  `json:"userId"`
	Rating       int     `json:"rating"`
	BookRating   float64 `json:"bookRating"`
	TotalReviews int     `json:"totalReviews"`
}

// ReviewModeratedData is the payload for review.edited and review.deleted.
type ReviewModeratedData struct {
	BookID       string                 `json:"bookId"`
	ReviewID     string                 `json:"reviewId"`
	ModeratorID  string                 `json:"moderatorId"`
	TargetUserID string                 `json:"targetUserId"`
	Reason       string                 `json:"reason,omitempty"`
	OldValue     *domain.ReviewSnapshot `json:"oldValue,omitempty"`
	NewValue     *domain.ReviewSnapshot `json:"newValue,omitempty"`
	BookRating   float64                `json:"bookRating"`
	TotalReviews int                    `json:"totalReviews"`
}

// AppealData is the payload for appeal.filed and appeal.resolved.
type AppealData struct {
	AppealID   string `json:"appealId"`
	UserID     string `json:"userId"`
	BookID     string `json:"bookId"`
	ReviewID   string `json:"reviewId"`
	Status     string `json:"status"`
	ResolvedBy string `json:"resolvedBy,omitempty"`
}

// Producer publishes review domain events to Kafka. A Producer created with
// a nil Kafka producer drops every event, which is how the service runs with
// KAFKA_ENABLED=false.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, book *domain.Book, review *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, book.ID, AggregateTypeBook, ReviewCreatedData{
		BookID:       book.ID,
		ReviewID:     review.ID,
		UserID:       review.UserID,
		Rating:       review.Rating,
		BookRating:   book.Rating,
		TotalReviews: book.TotalReviews,
	})
}

// PublishReviewModerated publishes review.edited or review.deleted depending
// on the entry's action.
func (p *Producer) PublishReviewModerated(ctx context.Context, book *domain.Book, entry *domain.ModerationLogEntry) error {
	topic := TopicReviewEdited
	if entry.Action == domain.ModerationActionDelete {
		topic = TopicReviewDeleted
	}
	return p.publish(ctx, topic, book.ID, AggregateTypeBook, ReviewModeratedData{
		BookID:       book.ID,
		ReviewID:     entry.ReviewID,
		ModeratorID:  entry.ModeratorID,
		TargetUserID: entry.TargetUserID,
		Reason:       entry.Reason,
		OldValue:     entry.OldValue,
		NewValue:     entry.NewValue,
		BookRating:   book.Rating,
		TotalReviews: book.TotalReviews,
	})
}

// PublishAppealFiled publishes an appeal.filed event.
func (p *Producer) PublishAppealFiled(ctx context.Context, appeal *domain.Appeal) error {
	return p.publish(ctx, TopicAppealFiled, appeal.ID, AggregateTypeAppeal, appealData(appeal))
}

// PublishAppealResolved publishes an appeal.resolved event.
func (p *Producer) PublishAppealResolved(ctx context.Context, appeal *domain.Appeal) error {
	return p.publish(ctx, TopicAppealResolved, appeal.ID, AggregateTypeAppeal, appealData(appeal))
}

func appealData(a *domain.Appeal) AppealData {
	return AppealData{
		AppealID:   a.ID,
		UserID:     a.UserID,
		BookID:     a.BookID,
		ReviewID:   a.ReviewID,
		Status:     a.Status,
		ResolvedBy: a.ResolvedBy,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published "+topic+" event",
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
