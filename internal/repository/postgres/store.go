package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/folio/internal/repository"
	"github.com/utafrali/folio/pkg/database"
)

// Store implements repository.Store on PostgreSQL. A Store created by
// WithinTx is bound to the transaction and runs nested WithinTx calls inline.
type Store struct {
	db   database.DBTX
	inTx bool
}

// NewStore creates a Store on a pool (or anything else satisfying DBTX).
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
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

// WithinTx runs fn in a transaction on the underlying pool.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: tx, inTx: true})
	})
}

// Ping runs a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func traced(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	return database.TraceQuery(ctx, database.SystemPostgres, operation, statement)
}

// nullable maps "" to SQL NULL for optional uuid columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ repository.Store = (*Store)(nil)
