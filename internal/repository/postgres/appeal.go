package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/repository"
	"github.com/utafrali/folio/pkg/database"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

const selectAppealQuery = `
		SELECT id, kind, user_id, book_id, review_id, message, status, response, resolved_by,
		       created_at, updated_at
		FROM appeals
		WHERE id = $1`

// AppealRepository implements repository.AppealRepository using PostgreSQL.
type AppealRepository struct {
	pool database.DBTX
}

// NewAppealRepository creates a new PostgreSQL-backed appeal repository.
func NewAppealRepository(pool database.DBTX) *AppealRepository {
	return &AppealRepository{pool: pool}
}

// Create inserts a new appeal.
func (r *AppealRepository) Create(ctx context.Context, a *domain.Appeal) (err error) {
	query := `
		INSERT INTO appeals (id, kind, user_id, book_id, review_id, message, status, response,
		                     resolved_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := traced(ctx, "InsertAppeal", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		a.ID,
		a.Kind,
		a.UserID,
		a.BookID,
		a.ReviewID,
		a.Message,
		a.Status,
		a.Response,
		nullable(a.ResolvedBy),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

// GetByID retrieves an appeal.
func (r *AppealRepository) GetByID(ctx context.Context, id string) (*domain.Appeal, error) {
	return r.scanAppeal(ctx, "GetAppeal", selectAppealQuery, id)
}

// GetForUpdate retrieves an appeal and locks its row.
func (r *AppealRepository) GetForUpdate(ctx context.Context, id string) (*domain.Appeal, error) {
	return r.scanAppeal(ctx, "GetAppealForUpdate", selectAppealQuery+"\n\t\tFOR UPDATE", id)
}

func (r *AppealRepository) scanAppeal(ctx context.Context, operation, query, id string) (appeal *domain.Appeal, err error) {
	ctx, end := traced(ctx, operation, query)
	defer func() { end(err) }()

	var (
		a          domain.Appeal
		resolvedBy *string
	)
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Kind,
		&a.UserID,
		&a.BookID,
		&a.ReviewID,
		&a.Message,
		&a.Status,
		&a.Response,
		&resolvedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("appeal", id)
		}
		return nil, fmt.Errorf("scan appeal: %w", err)
	}
	a.ResolvedBy = deref(resolvedBy)
	return &a, nil
}

// List returns appeals matching filter, oldest first.
func (r *AppealRepository) List(ctx context.Context, filter repository.AppealFilter) (appeals []domain.Appeal, total int, err error) {
	var (
		conditions []string
		args       []any
		argIdx     int
	)

	if filter.Status != nil {
		argIdx++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	query := fmt.Sprintf(`
		SELECT id, kind, user_id, book_id, review_id, message, status, response, resolved_by,
		       created_at, updated_at, count(*) OVER() AS total_count
		FROM appeals
		%s
		ORDER BY created_at ASC
		LIMIT $%d OFFSET $%d`, where, argIdx+1, argIdx+2)
	args = append(args, limit, offset)

	ctx, end := traced(ctx, "ListAppeals", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appeals: %w", err)
	}
	defer rows.Close()

	appeals = []domain.Appeal{}
	for rows.Next() {
		var (
			a          domain.Appeal
			resolvedBy *string
		)
		if err := rows.Scan(
			&a.ID,
			&a.Kind,
			&a.UserID,
			&a.BookID,
			&a.ReviewID,
			&a.Message,
			&a.Status,
			&a.Response,
			&resolvedBy,
			&a.CreatedAt,
			&a.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan appeal row: %w", err)
		}
		a.ResolvedBy = deref(resolvedBy)
		appeals = append(appeals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate appeal rows: %w", err)
	}

	return appeals, total, nil
}

// Update writes the appeal's status, response and resolver.
func (r *AppealRepository) Update(ctx context.Context, a *domain.Appeal) (err error) {
	query := `
		UPDATE appeals
		SET status = $2, response = $3, resolved_by = $4, updated_at = $5
		WHERE id = $1`

	ctx, end := traced(ctx, "UpdateAppeal", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, a.ID, a.Status, a.Response, nullable(a.ResolvedBy), a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("appeal", a.ID)
	}
	return nil
}
