package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/folio/internal/domain"
)

// ModerationLogRepository implements repository.ModerationLogRepository.
type ModerationLogRepository struct {
	collection *mongo.Collection
}

// NewModerationLogRepository creates a new MongoDB-backed moderation log repository.
func NewModerationLogRepository(db *mongo.Database) *ModerationLogRepository {
	return &ModerationLogRepository{collection: db.Collection(moderationLogCollection)}
}

// Create appends an entry.
func (r *ModerationLogRepository) Create(ctx context.Context, entry *domain.ModerationLogEntry) (err error) {
	ctx, end := traced(ctx, "InsertModerationLog", moderationLogCollection)
	defer func() { end(err) }()

	doc := moderationDoc{
		ID:           entry.ID,
		Action:       entry.Action,
		BookID:       entry.BookID,
		ReviewID:     entry.ReviewID,
		ModeratorID:  entry.ModeratorID,
		TargetUserID: entry.TargetUserID,
		Reason:       entry.Reason,
		OldValue:     toSnapshotDoc(entry.OldValue),
		NewValue:     toSnapshotDoc(entry.NewValue),
		CreatedAt:    entry.CreatedAt,
	}
	if _, err = r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert moderation log entry: %w", err)
	}
	return nil
}

// ListByBook returns the book's entries, newest first.
func (r *ModerationLogRepository) ListByBook(ctx context.Context, bookID string) (entries []domain.ModerationLogEntry, err error) {
	ctx, end := traced(ctx, "ListModerationLog", moderationLogCollection)
	defer func() { end(err) }()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"book_id": bookID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find moderation log: %w", err)
	}

	var docs []moderationDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode moderation log: %w", err)
	}

	entries = make([]domain.ModerationLogEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, d.toDomain())
	}
	return entries, nil
}
