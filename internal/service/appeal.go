package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/metrics"
	"github.com/utafrali/folio/internal/policy"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
	"github.com/utafrali/folio/pkg/pagination"
	"github.com/utafrali/folio/pkg/validator"
)

// FileAppealInput holds the parameters for contesting a moderation action.
type FileAppealInput struct {
	BookID   string
	ReviewID string
	Message  string
}

// ResolveAppealInput holds an admin's decision on an appeal.
type ResolveAppealInput struct {
	AppealID string
	Status   string
	Response string
}

// AppealService implements the support queue for review appeals.
type AppealService struct {
	store    repository.Store
	producer EventPublisher
	mailer   Mailer
	logger   *slog.Logger
	now      func() time.Time
}

// NewAppealService creates a new appeal service.
func NewAppealService(store repository.Store, producer EventPublisher, mailer Mailer, logger *slog.Logger) *AppealService {
	return &AppealService{
		store:    store,
		producer: producer,
		mailer:   mailer,
		logger:   logger,
		now:      utcNow,
	}
}

// File opens a pending appeal. The review may already have been deleted, so
// neither id is checked against the store.
func (s *AppealService) File(ctx context.Context, actor policy.Actor, input *FileAppealInput) (*domain.Appeal, error) {
	if !policy.Allowed(actor, policy.FileAppeal, nil) {
		return nil, apperrors.Unauthorized("authentication required")
	}

	message := strings.TrimSpace(input.Message)
	switch {
	case strings.TrimSpace(input.ReviewID) == "":
		return nil, validator.NewFieldError("reviewId", "is required")
	case strings.TrimSpace(input.BookID) == "":
		return nil, validator.NewFieldError("bookId", "is required")
	case message == "":
		return nil, validator.NewFieldError("message", "is required")
	}

	now := s.now()
	appeal := &domain.Appeal{
		ID:        uuid.New().String(),
		Kind:      domain.AppealKindReview,
		UserID:    actor.UserID,
		BookID:    strings.TrimSpace(input.BookID),
		ReviewID:  strings.TrimSpace(input.ReviewID),
		Message:   message,
		Status:    domain.AppealStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Appeals().Create(ctx, appeal); err != nil {
		return nil, fmt.Errorf("file appeal: %w", err)
	}

	metrics.Appeals.WithLabelValues(domain.AppealStatusPending).Inc()
	s.logger.InfoContext(ctx, "appeal filed",
		slog.String("appeal_id", appeal.ID),
		slog.String("user_id", appeal.UserID),
		slog.String("book_id", appeal.BookID),
		slog.String("review_id", appeal.ReviewID),
	)

	if err := s.producer.PublishAppealFiled(ctx, appeal); err != nil {
		s.logger.WarnContext(ctx, "failed to publish appeal filed event",
			slog.String("appeal_id", appeal.ID),
			slog.String("error", err.Error()),
		)
	}

	return appeal, nil
}

// List returns a page of appeals, oldest first, optionally filtered by
// status.
func (s *AppealService) List(ctx context.Context, actor policy.Actor, status string, params pagination.Params) (pagination.Result[domain.Appeal], error) {
	if !policy.Allowed(actor, policy.ListAppeals, nil) {
		return pagination.Result[domain.Appeal]{}, apperrors.Forbidden("only admins can list appeals")
	}

	filter := repository.AppealFilter{Page: params.Page, PerPage: params.PerPage}
	if status != "" {
		if !domain.IsValidAppealStatus(status) {
			return pagination.Result[domain.Appeal]{}, validator.NewFieldError("status", "must be one of pending, resolved, rejected")
		}
		filter.Status = &status
	}

	appeals, total, err := s.store.Appeals().List(ctx, filter)
	if err != nil {
		return pagination.Result[domain.Appeal]{}, fmt.Errorf("list appeals: %w", err)
	}
	return pagination.NewResult(appeals, total, params), nil
}

// Resolve closes a pending appeal as resolved or rejected and notifies the
// filer.
func (s *AppealService) Resolve(ctx context.Context, actor policy.Actor, input *ResolveAppealInput) (*domain.Appeal, error) {
	if !policy.Allowed(actor, policy.ResolveAppeal, nil) {
		return nil, apperrors.Forbidden("only admins can resolve appeals")
	}
	if input.Status != domain.AppealStatusResolved && input.Status != domain.AppealStatusRejected {
		return nil, validator.NewFieldError("status", "must be one of resolved, rejected")
	}

	now := s.now()
	response := strings.TrimSpace(input.Response)

	var (
		appeal       *domain.Appeal
		notification *domain.Notification
		filer        *domain.User
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		appeal, err = tx.Appeals().GetForUpdate(ctx, input.AppealID)
		if err != nil {
			return err
		}
		if !appeal.Resolve(input.Status, response, actor.UserID, now) {
			return apperrors.Conflict(fmt.Sprintf("appeal is already %s", appeal.Status))
		}
		if err := tx.Appeals().Update(ctx, appeal); err != nil {
			return err
		}

		filer, err = tx.Users().GetByID(ctx, appeal.UserID)
		if err != nil && !apperrors.IsNotFound(err) {
			return fmt.Errorf("get appeal filer: %w", err)
		}

		notification = &domain.Notification{
			ID:          uuid.New().String(),
			RecipientID: appeal.UserID,
			SenderID:    actor.UserID,
			Type:        domain.NotificationTypeAppealResolved,
			Message:     appealResolvedMessage(appeal.Status, appeal.Response),
			BookID:      appeal.BookID,
			CreatedAt:   now,
		}
		return tx.Notifications().Create(ctx, notification)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve appeal: %w", err)
	}

	metrics.Appeals.WithLabelValues(appeal.Status).Inc()
	s.logger.InfoContext(ctx, "appeal resolved",
		slog.String("appeal_id", appeal.ID),
		slog.String("status", appeal.Status),
		slog.String("resolved_by", appeal.ResolvedBy),
	)

	if err := s.producer.PublishAppealResolved(ctx, appeal); err != nil {
		s.logger.WarnContext(ctx, "failed to publish appeal resolved event",
			slog.String("appeal_id", appeal.ID),
			slog.String("error", err.Error()),
		)
	}
	sendEmail(ctx, s.mailer, s.logger, filer, notification, subjectAppealResolved)

	return appeal, nil
}
