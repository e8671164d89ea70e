package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/folio/internal/domain"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// DeliveryRepository implements repository.DeliveryRepository.
type DeliveryRepository struct {
	collection *mongo.Collection
}

// NewDeliveryRepository creates a new MongoDB-backed delivery repository.
func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{collection: db.Collection(deliveriesCollection)}
}

// Create inserts a delivery.
func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) (err error) {
	ctx, end := traced(ctx, "InsertDelivery", deliveriesCollection)
	defer func() { end(err) }()

	if _, err := r.collection.InsertOne(ctx, deliveryDoc(*d)); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetByID retrieves a delivery.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (delivery *domain.Delivery, err error) {
	ctx, end := traced(ctx, "GetDelivery", deliveriesCollection)
	defer func() { end(err) }()

	var doc deliveryDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("delivery", id)
		}
		return nil, fmt.Errorf("find delivery: %w", err)
	}
	d := domain.Delivery(doc)
	return &d, nil
}

// Update records the outcome of an attempt.
func (r *DeliveryRepository) Update(ctx context.Context, d *domain.Delivery) (err error) {
	ctx, end := traced(ctx, "UpdateDelivery", deliveriesCollection)
	defer func() { end(err) }()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": d.ID},
		bson.M{"$set": bson.M{
			"status":          d.Status,
			"attempts":        d.Attempts,
			"last_error":      d.LastError,
			"next_attempt_at": d.NextAttemptAt,
			"updated_at":      d.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("delivery", d.ID)
	}
	return nil
}

// ListRetryable returns due pending deliveries.
func (r *DeliveryRepository) ListRetryable(ctx context.Context, now time.Time, limit int) (deliveries []domain.Delivery, err error) {
	ctx, end := traced(ctx, "ListRetryableDeliveries", deliveriesCollection)
	defer func() { end(err) }()

	filter := bson.M{
		"status":          domain.DeliveryStatusPending,
		"next_attempt_at": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find retryable deliveries: %w", err)
	}

	var docs []deliveryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode deliveries: %w", err)
	}

	deliveries = make([]domain.Delivery, 0, len(docs))
	for _, d := range docs {
		deliveries = append(deliveries, domain.Delivery(d))
	}
	return deliveries, nil
}
