package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/policy"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
	"github.com/utafrali/folio/pkg/pagination"
)

// NotificationService exposes a user's in-app mailbox.
type NotificationService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewNotificationService creates a new notification service.
func NewNotificationService(store repository.Store, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:  store,
		logger: logger,
		now:    utcNow,
	}
}

// List returns a page of the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor policy.Actor, params pagination.Params) (pagination.Result[domain.Notification], error) {
	if actor.UserID == "" {
		return pagination.Result[domain.Notification]{}, apperrors.Unauthorized("authentication required")
	}

	items, total, err := s.store.Notifications().ListByRecipient(ctx, actor.UserID, params.Page, params.PerPage)
	if err != nil {
		return pagination.Result[domain.Notification]{}, fmt.Errorf("list notifications: %w", err)
	}
	return pagination.NewResult(items, total, params), nil
}

// MarkRead flags one of the caller's notifications as read. Someone else's
// notification is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, actor policy.Actor, id string) error {
	if actor.UserID == "" {
		return apperrors.Unauthorized("authentication required")
	}
	if err := s.store.Notifications().MarkRead(ctx, id, actor.UserID, s.now()); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	s.logger.DebugContext(ctx, "notification marked read",
		slog.String("notification_id", id),
		slog.String("user_id", actor.UserID),
	)
	return nil
}
