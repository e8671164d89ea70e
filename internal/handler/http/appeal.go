package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/pkg/httputil"
	"github.com/utafrali/folio/pkg/pagination"
)

// AppealHandler handles the review appeal support queue.
type AppealHandler struct {
	service *service.AppealService
	logger  *slog.Logger
}

// NewAppealHandler creates a new appeal HTTP handler.
func NewAppealHandler(svc *service.AppealService, logger *slog.Logger) *AppealHandler {
	return &AppealHandler{
		service: svc,
		logger:  logger,
	}
}

// FileAppealRequest is the JSON request body for filing an appeal.
type FileAppealRequest struct {
	ReviewID string `json:"reviewId" validate:"required,max=100"`
	BookID   string `json:"bookId" validate:"required,uuid"`
	Message  string `json:"message" validate:"required,trimmed_min=1,max=2000"`
}

// ResolveAppealRequest is the JSON request body for closing an appeal.
type ResolveAppealRequest struct {
	Status   string `json:"status" validate:"required,oneof=resolved rejected"`
	Response string `json:"response" validate:"max=2000"`
}

// FileAppeal handles POST /api/v1/support/appeal
// @Summary File a review appeal
// @Tags support
// @Accept json
// @Produce json
// @Param request body FileAppealRequest true "Appeal"
// @Success 201 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Router /api/v1/support/appeal [post]
func (h *AppealHandler) FileAppeal(w http.ResponseWriter, r *http.Request) {
	var req FileAppealRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	appeal, err := h.service.File(r.Context(), actorFrom(r), &service.FileAppealInput{
		BookID:   req.BookID,
		ReviewID: req.ReviewID,
		Message:  req.Message,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, appeal)
}

// ListAppeals handles GET /api/v1/support/appeals?status=&page=&per_page=
func (h *AppealHandler) ListAppeals(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), actorFrom(r), r.URL.Query().Get("status"), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// ResolveAppeal handles PATCH /api/v1/support/appeals/{appealId}
func (h *AppealHandler) ResolveAppeal(w http.ResponseWriter, r *http.Request) {
	appealID, ok := pathID(w, r, "appealId")
	if !ok {
		return
	}

	var req ResolveAppealRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	appeal, err := h.service.Resolve(r.Context(), actorFrom(r), &service.ResolveAppealInput{
		AppealID: appealID,
		Status:   req.Status,
		Response: req.Response,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, appeal)
}
