package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/folio/internal/domain"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// NotificationRepository implements repository.NotificationRepository.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new MongoDB-backed notification repository.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection(notificationsCollection)}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (err error) {
	ctx, end := traced(ctx, "InsertNotification", notificationsCollection)
	defer func() { end(err) }()

	if _, err := r.collection.InsertOne(ctx, notificationDoc(*n)); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns a page of notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, page, perPage int) (notifications []domain.Notification, count int, err error) {
	ctx, end := traced(ctx, "ListNotifications", notificationsCollection)
	defer func() { end(err) }()

	filter := bson.M{"recipient_id": recipientID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	skip, limit := pageBounds(page, perPage)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find notifications: %w", err)
	}

	var docs []notificationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode notifications: %w", err)
	}

	notifications = make([]domain.Notification, 0, len(docs))
	for _, d := range docs {
		notifications = append(notifications, d.toDomain())
	}
	return notifications, int(total), nil
}

// MarkRead flags the notification as read. An already read notification
// keeps its original read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (err error) {
	ctx, end := traced(ctx, "MarkNotificationRead", notificationsCollection)
	defer func() { end(err) }()

	owned := bson.M{"_id": id, "recipient_id": recipientID}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipientID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, owned)
	if err != nil {
		return fmt.Errorf("count notification: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("notification", id)
	}
	return nil
}
