package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/pkg/database"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// NotificationRepository implements repository.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	pool database.DBTX
}

// NewNotificationRepository creates a new PostgreSQL-backed notification repository.
func NewNotificationRepository(pool database.DBTX) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (err error) {
	query := `
		INSERT INTO notifications (id, recipient_id, sender_id, type, message, book_id, read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := traced(ctx, "InsertNotification", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		n.ID,
		n.RecipientID,
		n.SenderID,
		n.Type,
		n.Message,
		nullable(n.BookID),
		n.Read,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns a page of notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, page, perPage int) (notifications []domain.Notification, total int, err error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT id, recipient_id, sender_id, type, message, book_id, read, read_at, created_at,
		       count(*) OVER() AS total_count
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := traced(ctx, "ListNotifications", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications = []domain.Notification{}
	for rows.Next() {
		var (
			n      domain.Notification
			bookID *string
		)
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.SenderID,
			&n.Type,
			&n.Message,
			&bookID,
			&n.Read,
			&n.ReadAt,
			&n.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		n.BookID = deref(bookID)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}

	return notifications, total, nil
}

// MarkRead flags one of the recipient's notifications as read. Marking an
// already read notification keeps the original read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (err error) {
	query := `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2`

	ctx, end := traced(ctx, "MarkNotificationRead", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id, recipientID, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("notification", id)
	}
	return nil
}
