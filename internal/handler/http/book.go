package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/pkg/httputil"
)

// BookHandler handles HTTP requests for the book catalog.
type BookHandler struct {
	service *service.BookService
	logger  *slog.Logger
}

// NewBookHandler creates a new book HTTP handler.
func NewBookHandler(svc *service.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateBookRequest is the JSON request body for creating a book.
type CreateBookRequest struct {
	Title       string   `json:"title" validate:"required,max=500"`
	AuthorName  string   `json:"authorName" validate:"max=255"`
	Description string   `json:"description"`
	Price       int64    `json:"price" validate:"gte=0"`
	Category    string   `json:"category" validate:"max=100"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	AuthorRef   string   `json:"authorRef" validate:"omitempty,uuid"`
}

// CreateBook handles POST /api/v1/books
// @Summary Create a book
// @Description Creates a book owned by the calling author. Admins may set authorRef.
// @Tags books
// @Accept json
// @Produce json
// @Param request body CreateBookRequest true "Book to create"
// @Success 201 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Router /api/v1/books [post]
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	book, err := h.service.CreateBook(r.Context(), actorFrom(r), &service.CreateBookInput{
		Title:       req.Title,
		AuthorName:  req.AuthorName,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Tags:        req.Tags,
		AuthorID:    req.AuthorRef,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, book)
}

// GetBook handles GET /api/v1/books/{bookId}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, book)
}
