package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/pkg/httputil"
)

// ModerationHandler handles edits and deletions of reviews by a book's
// author or an admin, and the moderation log.
type ModerationHandler struct {
	service *service.ModerationService
	logger  *slog.Logger
}

// NewModerationHandler creates a new moderation HTTP handler.
func NewModerationHandler(svc *service.ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{
		service: svc,
		logger:  logger,
	}
}

// EditReviewRequest is the JSON request body for editing a review. Omitted
// fields are left unchanged.
type EditReviewRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment *string `json:"comment" validate:"omitempty,max=5000"`
}

// DeleteReviewRequest is the JSON request body for deleting a review.
type DeleteReviewRequest struct {
	Reason string `json:"reason" validate:"trimmed_min=5,max=1000"`
}

// EditReview handles PUT /api/v1/books/{bookId}/reviews/{reviewId}
// @Summary Edit a review
// @Description Book author (within the edit window) or admin overwrites rating and/or comment
// @Tags moderation
// @Accept json
// @Produce json
// @Param bookId path string true "Book UUID"
// @Param reviewId path string true "Review UUID"
// @Param request body EditReviewRequest true "Fields to change"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/books/{bookId}/reviews/{reviewId} [put]
func (h *ModerationHandler) EditReview(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	reviewID, ok := pathID(w, r, "reviewId")
	if !ok {
		return
	}

	var req EditReviewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	reviews, err := h.service.EditReview(r.Context(), actorFrom(r), &service.EditReviewInput{
		BookID:   bookID,
		ReviewID: reviewID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, reviews)
}

// DeleteReview handles DELETE /api/v1/books/{bookId}/reviews/{reviewId}
// @Summary Delete a review
// @Description Book author (within the edit window) or admin removes a review, giving a reason
// @Tags moderation
// @Accept json
// @Produce json
// @Param bookId path string true "Book UUID"
// @Param reviewId path string true "Review UUID"
// @Param request body DeleteReviewRequest true "Reason for removal"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/books/{bookId}/reviews/{reviewId} [delete]
func (h *ModerationHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	// The reason is validated before the ids so that a short reason is always
	// reported first.
	var req DeleteReviewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	reviewID, ok := pathID(w, r, "reviewId")
	if !ok {
		return
	}

	reviews, err := h.service.DeleteReview(r.Context(), actorFrom(r), &service.DeleteReviewInput{
		BookID:   bookID,
		ReviewID: reviewID,
		Reason:   req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, reviews)
}

// ListModerationLog handles GET /api/v1/books/{bookId}/moderation-log
func (h *ModerationHandler) ListModerationLog(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}

	entries, err := h.service.ListModerationLog(r.Context(), actorFrom(r), bookID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, entries)
}
