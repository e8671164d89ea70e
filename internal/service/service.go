package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/folio/internal/dispatch"
	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/repository"
)

// EventPublisher publishes domain events after a transaction commits.
// *event.Producer implements it.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, book *domain.Book, review *domain.Review) error
	PublishReviewModerated(ctx context.Context, book *domain.Book, entry *domain.ModerationLogEntry) error
	PublishAppealFiled(ctx context.Context, appeal *domain.Appeal) error
	PublishAppealResolved(ctx context.Context, appeal *domain.Appeal) error
}

// Mailer schedules an email for asynchronous delivery. *dispatch.Dispatcher
// implements it.
type Mailer interface {
	Enqueue(ctx context.Context, email dispatch.Email) (*domain.Delivery, error)
}

func utcNow() time.Time { return time.Now().UTC() }

// withReviewerNames fills UserName on a copy of reviews from the user
// directory. Unknown users keep an empty name.
func withReviewerNames(ctx context.Context, users repository.UserRepository, reviews []domain.Review) ([]domain.Review, error) {
	out := make([]domain.Review, len(reviews))
	copy(out, reviews)
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	seen := make(map[string]struct{}, len(out))
	for _, r := range out {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}

	byID, err := users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if u, ok := byID[out[i].UserID]; ok {
			out[i].UserName = u.DisplayName()
		}
	}
	return out, nil
}

// sendEmail hands an email to the mailer. Failures are logged, never
// returned: the request that triggered the email has already succeeded.
func sendEmail(ctx context.Context, mailer Mailer, logger *slog.Logger, recipient *domain.User, n *domain.Notification, subject string) {
	if mailer == nil || recipient == nil || recipient.Email == "" {
		return
	}

	_, err := mailer.Enqueue(ctx, dispatch.Email{
		NotificationID: n.ID,
		To:             recipient.Email,
		Subject:        subject,
		Body:           n.Message,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to schedule notification email",
			slog.String("notification_id", n.ID),
			slog.String("recipient_id", recipient.ID),
			slog.String("error", err.Error()),
		)
	}
}

func lookupUser(users map[string]domain.User, id string) *domain.User {
	if u, ok := users[id]; ok {
		return &u
	}
	return nil
}

func displayName(u *domain.User, fallback string) string {
	if name := u.DisplayName(); name != "" {
		return name
	}
	return fallback
}
