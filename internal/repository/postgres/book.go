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

const reviewUniqueConstraint = "uq_reviews_book_user"

const (
	selectBookQuery = `
		SELECT id, title, author_name, description, price, category, tags, author_id,
		       rating, total_reviews, created_at, updated_at
		FROM books
		WHERE id = $1`

	selectReviewsQuery = `
		SELECT id, book_id, user_id, rating, comment, date, updated_at
		FROM reviews
		WHERE book_id = $1
		ORDER BY seq`

	updateAggregatesQuery = `
		UPDATE books
		SET rating = $2, total_reviews = $3, updated_at = $4
		WHERE id = $1`
)

// BookRepository implements repository.BookRepository using PostgreSQL.
// Reviews live in their own table and are loaded with the book.
type BookRepository struct {
	pool database.DBTX
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(pool database.DBTX) *BookRepository {
	return &BookRepository{pool: pool}
}

// Create inserts a new book.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (err error) {
	query := `
		INSERT INTO books (id, title, author_name, description, price, category, tags, author_id,
		                   rating, total_reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := traced(ctx, "InsertBook", query)
	defer func() { end(err) }()

	tags := book.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = r.pool.Exec(ctx, query,
		book.ID,
		book.Title,
		book.AuthorName,
		book.Description,
		book.Price,
		book.Category,
		tags,
		book.AuthorID,
		book.Rating,
		book.TotalReviews,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetByID returns the book with its reviews.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	return r.get(ctx, "GetBook", selectBookQuery, id)
}

// GetForUpdate locks the book row. Concurrent moderation of the same book
// queues up behind the lock instead of overwriting each other.
func (r *BookRepository) GetForUpdate(ctx context.Context, id string) (*domain.Book, error) {
	return r.get(ctx, "GetBookForUpdate", selectBookQuery+"\n\t\tFOR UPDATE", id)
}

func (r *BookRepository) get(ctx context.Context, operation, query, id string) (book *domain.Book, err error) {
	ctx, end := traced(ctx, operation, query)
	defer func() { end(err) }()

	var b domain.Book
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.Title,
		&b.AuthorName,
		&b.Description,
		&b.Price,
		&b.Category,
		&b.Tags,
		&b.AuthorID,
		&b.Rating,
		&b.TotalReviews,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}

	b.Reviews, err = r.listReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookRepository) listReviews(ctx context.Context, bookID string) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, selectReviewsQuery, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.BookID,
			&rv.UserID,
			&rv.Rating,
			&rv.Comment,
			&rv.Date,
			&rv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// InsertReview stores the review and the book's new aggregates.
func (r *BookRepository) InsertReview(ctx context.Context, book *domain.Book, review *domain.Review) (err error) {
	query := `
		INSERT INTO reviews (id, book_id, user_id, rating, comment, date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := traced(ctx, "InsertReview", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		book.ID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.Date,
		review.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, reviewUniqueConstraint) {
			return apperrors.DuplicateReview(book.ID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return r.saveAggregates(ctx, book, review.UpdatedAt)
}

// UpdateReview writes the review's rating and comment and the book's rating.
func (r *BookRepository) UpdateReview(ctx context.Context, book *domain.Book, review *domain.Review) (err error) {
	query := `
		UPDATE reviews
		SET rating = $3, comment = $4, updated_at = $5
		WHERE id = $1 AND book_id = $2`

	ctx, end := traced(ctx, "UpdateReview", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, review.ID, book.ID, review.Rating, review.Comment, review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", review.ID)
	}

	return r.saveAggregates(ctx, book, review.UpdatedAt)
}

// DeleteReview removes the review and writes the book's new aggregates.
func (r *BookRepository) DeleteReview(ctx context.Context, book *domain.Book, reviewID string) (err error) {
	query := `DELETE FROM reviews WHERE id = $1 AND book_id = $2`

	ctx, end := traced(ctx, "DeleteReview", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, reviewID, book.ID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", reviewID)
	}

	return r.saveAggregates(ctx, book, book.UpdatedAt)
}

func (r *BookRepository) saveAggregates(ctx context.Context, book *domain.Book, at time.Time) error {
	book.UpdatedAt = at
	if _, err := r.pool.Exec(ctx, updateAggregatesQuery, book.ID, book.Rating, book.TotalReviews, at); err != nil {
		return fmt.Errorf("update book aggregates: %w", err)
	}
	return nil
}
