package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/policy"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
	"github.com/utafrali/folio/pkg/validator"
)

// CreateBookInput holds the parameters for creating a book.
type CreateBookInput struct {
	Title       string
	AuthorName  string
	Description string
	Price       int64
	Category    string
	Tags        []string
	// AuthorID may only be set by admins creating a book on an author's
	// behalf. Authors always own the books they create.
	AuthorID string
}

// BookService implements the minimal catalog that reviews hang off.
type BookService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewBookService creates a new book service.
func NewBookService(store repository.Store, logger *slog.Logger) *BookService {
	return &BookService{
		store:  store,
		logger: logger,
		now:    utcNow,
	}
}

// CreateBook creates a book owned by the caller.
func (s *BookService) CreateBook(ctx context.Context, actor policy.Actor, input *CreateBookInput) (*domain.Book, error) {
	if !policy.Allowed(actor, policy.CreateBook, nil) {
		return nil, apperrors.Forbidden("only authors and admins can create books")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, validator.NewFieldError("title", "is required")
	}
	if input.Price < 0 {
		return nil, validator.NewFieldError("price", "must be greater than or equal to 0")
	}

	authorID := actor.UserID
	if actor.IsAdmin() && input.AuthorID != "" {
		authorID = input.AuthorID
	}

	authorName := input.AuthorName
	if authorName == "" {
		author, err := s.store.Users().GetByID(ctx, authorID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("get book author: %w", err)
		}
		authorName = author.DisplayName()
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	book := &domain.Book{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(input.Title),
		AuthorName:  authorName,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Tags:        tags,
		AuthorID:    authorID,
		Reviews:     []domain.Review{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Books().Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.InfoContext(ctx, "book created",
		slog.String("book_id", book.ID),
		slog.String("author_id", book.AuthorID),
	)

	return book, nil
}

// GetBook returns a book with its reviews and their authors' names.
func (s *BookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	book, err := s.store.Books().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	reviews, err := withReviewerNames(ctx, s.store.Users(), book.Reviews)
	if err != nil {
		return nil, fmt.Errorf("resolve reviewer names: %w", err)
	}
	book.Reviews = reviews
	return book, nil
}
