package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/pkg/httputil"
	"github.com/utafrali/folio/pkg/pagination"
)

// NotificationHandler serves the caller's in-app mailbox.
type NotificationHandler struct {
	service *service.NotificationService
	logger  *slog.Logger
}

// NewNotificationHandler creates a new notification HTTP handler.
func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		logger:  logger,
	}
}

// ListNotifications handles GET /api/v1/notifications?page=&per_page=
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), actorFrom(r), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// MarkAsRead handles PUT /api/v1/notifications/{notificationId}/read
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "notificationId")
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), actorFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
