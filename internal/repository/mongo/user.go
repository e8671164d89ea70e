package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/utafrali/folio/internal/domain"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// UserRepository reads the users collection.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new MongoDB-backed user repository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(usersCollection)}
}

// GetByID retrieves a user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (user *domain.User, err error) {
	ctx, end := traced(ctx, "GetUser", usersCollection)
	defer func() { end(err) }()

	var doc userDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u := domain.User(doc)
	return &u, nil
}

// GetByIDs resolves a batch of users with one $in query.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (users map[string]domain.User, err error) {
	users = make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	ctx, end := traced(ctx, "GetUsers", usersCollection)
	defer func() { end(err) }()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for _, d := range docs {
		users[d.ID] = domain.User(d)
	}
	return users, nil
}
