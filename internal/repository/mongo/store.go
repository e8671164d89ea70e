// Package mongo implements the repository interfaces on MongoDB. Reviews are
// embedded in their book document, the same shape the marketplace's
// document store uses. Transactions need a replica set.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/utafrali/folio/internal/repository"
	"github.com/utafrali/folio/pkg/database"
)

// Store implements repository.Store on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore creates a Store on the named database.
func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

func (s *Store) Books() repository.BookRepository { return NewBookRepository(s.db) }

func (s *Store) ModerationLogs() repository.ModerationLogRepository {
	return NewModerationLogRepository(s.db)
}

func (s *Store) Notifications() repository.NotificationRepository {
	return NewNotificationRepository(s.db)
}

func (s *Store) Appeals() repository.AppealRepository { return NewAppealRepository(s.db) }

func (s *Store) Users() repository.UserRepository { return NewUserRepository(s.db) }

func (s *Store) Deliveries() repository.DeliveryRepository { return NewDeliveryRepository(s.db) }

// WithinTx runs fn inside a session transaction. The session travels in the
// context handed to fn, so repositories pick it up without a separate Store.
// A call made inside an existing session runs inline.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, s)
	})
	return err
}

// Ping checks the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

func traced(ctx context.Context, operation, collection string) (context.Context, func(error)) {
	return database.TraceQuery(ctx, database.SystemMongo, operation, collection)
}

func pageBounds(page, perPage int) (skip, limit int64) {
	limit = int64(perPage)
	if limit <= 0 {
		limit = 20
	}
	if page > 1 {
		skip = int64(page-1) * limit
	}
	return skip, limit
}

var _ repository.Store = (*Store)(nil)
