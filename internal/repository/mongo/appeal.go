package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// AppealRepository implements repository.AppealRepository.
type AppealRepository struct {
	collection *mongo.Collection
}

// NewAppealRepository creates a new MongoDB-backed appeal repository.
func NewAppealRepository(db *mongo.Database) *AppealRepository {
	return &AppealRepository{collection: db.Collection(appealsCollection)}
}

// Create inserts an appeal.
func (r *AppealRepository) Create(ctx context.Context, a *domain.Appeal) (err error) {
	ctx, end := traced(ctx, "InsertAppeal", appealsCollection)
	defer func() { end(err) }()

	if _, err := r.collection.InsertOne(ctx, newAppealDoc(a)); err != nil {
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

// GetByID retrieves an appeal.
func (r *AppealRepository) GetByID(ctx context.Context, id string) (appeal *domain.Appeal, err error) {
	ctx, end := traced(ctx, "GetAppeal", appealsCollection)
	defer func() { end(err) }()

	var doc appealDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("appeal", id)
		}
		return nil, fmt.Errorf("find appeal: %w", err)
	}
	return doc.toDomain(), nil
}

// GetForUpdate retrieves an appeal and bumps its lock_version, see
// BookRepository.GetForUpdate.
func (r *AppealRepository) GetForUpdate(ctx context.Context, id string) (appeal *domain.Appeal, err error) {
	ctx, end := traced(ctx, "GetAppealForUpdate", appealsCollection)
	defer func() { end(err) }()

	var doc appealDoc
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("appeal", id)
		}
		return nil, fmt.Errorf("lock appeal: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns appeals matching filter, oldest first.
func (r *AppealRepository) List(ctx context.Context, filter repository.AppealFilter) (appeals []domain.Appeal, count int, err error) {
	ctx, end := traced(ctx, "ListAppeals", appealsCollection)
	defer func() { end(err) }()

	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count appeals: %w", err)
	}

	skip, limit := pageBounds(filter.Page, filter.PerPage)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find appeals: %w", err)
	}

	var docs []appealDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode appeals: %w", err)
	}

	appeals = make([]domain.Appeal, 0, len(docs))
	for _, d := range docs {
		appeals = append(appeals, *d.toDomain())
	}
	return appeals, int(total), nil
}

// Update writes the appeal's resolution.
func (r *AppealRepository) Update(ctx context.Context, a *domain.Appeal) (err error) {
	ctx, end := traced(ctx, "UpdateAppeal", appealsCollection)
	defer func() { end(err) }()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": a.ID},
		bson.M{"$set": bson.M{
			"status":      a.Status,
			"response":    a.Response,
			"resolved_by": a.ResolvedBy,
			"updated_at":  a.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("appeal", a.ID)
	}
	return nil
}
