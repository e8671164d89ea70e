package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/pkg/database"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

// UserRepository reads the users table, a mirror of the marketplace user
// directory.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (user *domain.User, err error) {
	query := `SELECT id, name, email, role FROM users WHERE id = $1`

	ctx, end := traced(ctx, "GetUser", query)
	defer func() { end(err) }()

	var u domain.User
	err = r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetByIDs resolves a batch of users in one query.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (users map[string]domain.User, err error) {
	users = make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query := `SELECT id, name, email, role FROM users WHERE id = ANY($1::uuid[])`

	ctx, end := traced(ctx, "GetUsers", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}
