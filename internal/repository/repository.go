package repository

import (
	"context"
	"time"

	"github.com/utafrali/folio/internal/domain"
)

// Store groups the repositories of the review service and the transaction
// boundary around them. Implementations exist for PostgreSQL and MongoDB.
type Store interface {
	Books() BookRepository
	ModerationLogs() ModerationLogRepository
	Notifications() NotificationRepository
	Appeals() AppealRepository
	Users() UserRepository
	Deliveries() DeliveryRepository

	// WithinTx runs fn in a single transaction. The Store passed to fn (and
	// the context, for drivers that carry the session in it) must be used for
	// every operation that belongs to the transaction. The transaction is
	// committed when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
}

// BookRepository persists books together with their embedded reviews.
// Every review mutation also writes the book's rating and totalReviews, so
// callers must call Recalculate on the book first.
type BookRepository interface {
	// Create inserts a new book without reviews.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID returns the book with its reviews in insertion order.
	GetByID(ctx context.Context, id string) (*domain.Book, error)

	// GetForUpdate is GetByID that also locks the book until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Book, error)

	// InsertReview stores review on book. A second review by the same user
	// fails with a DUPLICATE_REVIEW error.
	InsertReview(ctx context.Context, book *domain.Book, review *domain.Review) error

	// UpdateReview overwrites the rating and comment of an existing review.
	UpdateReview(ctx context.Context, book *domain.Book, review *domain.Review) error

	// DeleteReview removes the review from book.
	DeleteReview(ctx context.Context, book *domain.Book, reviewID string) error
}

// ModerationLogRepository is the append-only moderation ledger.
type ModerationLogRepository interface {
	Create(ctx context.Context, entry *domain.ModerationLogEntry) error

	// ListByBook returns every entry for the book, newest first.
	ListByBook(ctx context.Context, bookID string) ([]domain.ModerationLogEntry, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error

	// ListByRecipient returns a page of the recipient's notifications, newest
	// first, along with the total count.
	ListByRecipient(ctx context.Context, recipientID string, page, perPage int) ([]domain.Notification, int, error)

	// MarkRead flags the notification as read. It fails with NOT_FOUND if the
	// notification does not exist or belongs to someone else.
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) error
}

// AppealFilter narrows appeal listings.
type AppealFilter struct {
	Status  *string
	Page    int
	PerPage int
}

// AppealRepository stores review appeals.
type AppealRepository interface {
	Create(ctx context.Context, appeal *domain.Appeal) error
	GetByID(ctx context.Context, id string) (*domain.Appeal, error)

	// GetForUpdate is GetByID that also locks the appeal until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Appeal, error)

	// List returns appeals matching filter, oldest first, with the total count.
	List(ctx context.Context, filter AppealFilter) ([]domain.Appeal, int, error)

	Update(ctx context.Context, appeal *domain.Appeal) error
}

// UserRepository reads the marketplace user directory.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByIDs returns the users that exist, keyed by id. Missing ids are
	// simply absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// DeliveryRepository is the email delivery log.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	Update(ctx context.Context, d *domain.Delivery) error

	// ListRetryable returns pending deliveries whose next attempt is due,
	// oldest first.
	ListRetryable(ctx context.Context, now time.Time, limit int) ([]domain.Delivery, error)
}
