package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/pkg/httputil"
)

// ReviewHandler handles posting and listing reviews.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateReviewRequest is the JSON request body for creating a review.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=5000"`
}

// ListReviews handles GET /api/v1/books/{bookId}/reviews
// @Summary List book reviews
// @Description Returns every review of the book in posting order, with reviewer names
// @Tags reviews
// @Produce json
// @Param bookId path string true "Book UUID"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/books/{bookId}/reviews [get]
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), bookID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, reviews)
}

// CreateReview handles POST /api/v1/books/{bookId}/reviews
// @Summary Review a book
// @Description Adds the caller's review. Each user may review a book once.
// @Tags reviews
// @Accept json
// @Produce json
// @Param bookId path string true "Book UUID"
// @Param request body CreateReviewRequest true "Review to submit"
// @Success 201 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/books/{bookId}/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	reviews, err := h.service.CreateReview(r.Context(), actorFrom(r), &service.CreateReviewInput{
		BookID:  bookID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, reviews)
}
