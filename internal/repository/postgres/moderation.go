package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/pkg/database"
)

// ModerationLogRepository implements repository.ModerationLogRepository using
// PostgreSQL. Snapshots are stored as JSONB.
type ModerationLogRepository struct {
	pool database.DBTX
}

// NewModerationLogRepository creates a new PostgreSQL-backed moderation log repository.
func NewModerationLogRepository(pool database.DBTX) *ModerationLogRepository {
	return &ModerationLogRepository{pool: pool}
}

// Create appends an entry.
func (r *ModerationLogRepository) Create(ctx context.Context, entry *domain.ModerationLogEntry) (err error) {
	query := `
		INSERT INTO moderation_log (id, action, book_id, review_id, moderator_id, target_user_id,
		                            reason, old_value, new_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := traced(ctx, "InsertModerationLog", query)
	defer func() { end(err) }()

	oldJSON, err := marshalSnapshot(entry.OldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshalSnapshot(entry.NewValue)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.Action,
		entry.BookID,
		entry.ReviewID,
		entry.ModeratorID,
		entry.TargetUserID,
		entry.Reason,
		oldJSON,
		newJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert moderation log entry: %w", err)
	}
	return nil
}

// ListByBook returns the book's entries, newest first.
func (r *ModerationLogRepository) ListByBook(ctx context.Context, bookID string) (entries []domain.ModerationLogEntry, err error) {
	query := `
		SELECT id, action, book_id, review_id, moderator_id, target_user_id,
		       reason, old_value, new_value, created_at
		FROM moderation_log
		WHERE book_id = $1
		ORDER BY created_at DESC, id DESC`

	ctx, end := traced(ctx, "ListModerationLog", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	defer rows.Close()

	entries = []domain.ModerationLogEntry{}
	for rows.Next() {
		var (
			e                domain.ModerationLogEntry
			oldJSON, newJSON []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.BookID,
			&e.ReviewID,
			&e.ModeratorID,
			&e.TargetUserID,
			&e.Reason,
			&oldJSON,
			&newJSON,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation log row: %w", err)
		}
		if e.OldValue, err = unmarshalSnapshot(oldJSON); err != nil {
			return nil, err
		}
		if e.NewValue, err = unmarshalSnapshot(newJSON); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation log rows: %w", err)
	}
	return entries, nil
}

func marshalSnapshot(s *domain.ReviewSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal review snapshot: %w", err)
	}
	return b, nil
}

func unmarshalSnapshot(b []byte) (*domain.ReviewSnapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s domain.ReviewSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal review snapshot: %w", err)
	}
	return &s, nil
}
