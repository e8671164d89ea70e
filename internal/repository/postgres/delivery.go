package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/pkg/database"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

const deliveryColumns = `id, notification_id, recipient, subject, body, status, attempts, max_attempts,
		       last_error, next_attempt_at, created_at, updated_at`

// DeliveryRepository implements repository.DeliveryRepository using PostgreSQL.
type DeliveryRepository struct {
	pool database.DBTX
}

// NewDeliveryRepository creates a new PostgreSQL-backed delivery repository.
func NewDeliveryRepository(pool database.DBTX) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

// Create inserts a new delivery.
func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) (err error) {
	query := `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := traced(ctx, "InsertDelivery", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.NotificationID,
		d.Recipient,
		d.Subject,
		d.Body,
		d.Status,
		d.Attempts,
		d.MaxAttempts,
		d.LastError,
		d.NextAttemptAt,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetByID retrieves a delivery.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (delivery *domain.Delivery, err error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	ctx, end := traced(ctx, "GetDelivery", query)
	defer func() { end(err) }()

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("delivery", id)
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}
	return d, nil
}

// Update records the outcome of an attempt.
func (r *DeliveryRepository) Update(ctx context.Context, d *domain.Delivery) (err error) {
	query := `
		UPDATE deliveries
		SET status = $2, attempts = $3, last_error = $4, next_attempt_at = $5, updated_at = $6
		WHERE id = $1`

	ctx, end := traced(ctx, "UpdateDelivery", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, d.ID, d.Status, d.Attempts, d.LastError, d.NextAttemptAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("delivery", d.ID)
	}
	return nil
}

// ListRetryable returns due pending deliveries.
func (r *DeliveryRepository) ListRetryable(ctx context.Context, now time.Time, limit int) (deliveries []domain.Delivery, err error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2`

	ctx, end := traced(ctx, "ListRetryableDeliveries", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable deliveries: %w", err)
	}
	defer rows.Close()

	deliveries = []domain.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery rows: %w", err)
	}
	return deliveries, nil
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID,
		&d.NotificationID,
		&d.Recipient,
		&d.Subject,
		&d.Body,
		&d.Status,
		&d.Attempts,
		&d.MaxAttempts,
		&d.LastError,
		&d.NextAttemptAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
