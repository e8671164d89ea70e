package memory

import (
	"context"
	"sort"
	"time"

	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/internal/repository"
	apperrors "github.com/utafrali/folio/pkg/errors"
)

type bookRepo struct{ s *Store }

func (r *bookRepo) Create(_ context.Context, book *domain.Book) error {
	if err := r.s.injected("Books.Create"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		if _, ok := st.books[book.ID]; ok {
			return apperrors.Conflict("book " + book.ID + " already exists")
		}
		st.books[book.ID] = copyBook(*book)
		return nil
	})
}

func (r *bookRepo) GetByID(_ context.Context, id string) (*domain.Book, error) {
	if err := r.s.injected("Books.GetByID"); err != nil {
		return nil, err
	}
	var out domain.Book
	err := r.s.view(func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return apperrors.NotFound("book", id)
		}
		out = copyBook(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *bookRepo) GetForUpdate(ctx context.Context, id string) (*domain.Book, error) {
	return r.GetByID(ctx, id)
}

func (r *bookRepo) InsertReview(_ context.Context, book *domain.Book, review *domain.Review) error {
	if err := r.s.injected("Books.InsertReview"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		b, ok := st.books[book.ID]
		if !ok {
			return apperrors.NotFound("book", book.ID)
		}
		if _, dup := b.ReviewBy(review.UserID); dup {
			return apperrors.DuplicateReview(book.ID)
		}
		b.Reviews = append(b.Reviews, *review)
		saveAggregates(st, &b, book, review.UpdatedAt)
		return nil
	})
}

func (r *bookRepo) UpdateReview(_ context.Context, book *domain.Book, review *domain.Review) error {
	if err := r.s.injected("Books.UpdateReview"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		b, ok := st.books[book.ID]
		if !ok {
			return apperrors.NotFound("book", book.ID)
		}
		stored, ok := b.FindReview(review.ID)
		if !ok {
			return apperrors.NotFound("review", review.ID)
		}
		stored.Rating = review.Rating
		stored.Comment = review.Comment
		stored.UpdatedAt = review.UpdatedAt
		saveAggregates(st, &b, book, review.UpdatedAt)
		return nil
	})
}

func (r *bookRepo) DeleteReview(_ context.Context, book *domain.Book, reviewID string) error {
	if err := r.s.injected("Books.DeleteReview"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		b, ok := st.books[book.ID]
		if !ok {
			return apperrors.NotFound("book", book.ID)
		}
		for i := range b.Reviews {
			if b.Reviews[i].ID == reviewID {
				b.Reviews = append(b.Reviews[:i:i], b.Reviews[i+1:]...)
				saveAggregates(st, &b, book, book.UpdatedAt)
				return nil
			}
		}
		return apperrors.NotFound("review", reviewID)
	})
}

// saveAggregates stores the caller's computed aggregates, the same way the
// SQL store writes them in a separate statement.
func saveAggregates(st *state, stored, book *domain.Book, at time.Time) {
	book.UpdatedAt = at
	stored.Rating = book.Rating
	stored.TotalReviews = book.TotalReviews
	stored.UpdatedAt = at
	st.books[stored.ID] = *stored
}

type moderationRepo struct{ s *Store }

func (r *moderationRepo) Create(_ context.Context, entry *domain.ModerationLogEntry) error {
	if err := r.s.injected("ModerationLogs.Create"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		st.logs = append(st.logs, *entry)
		return nil
	})
}

func (r *moderationRepo) ListByBook(_ context.Context, bookID string) ([]domain.ModerationLogEntry, error) {
	var out []domain.ModerationLogEntry
	err := r.s.view(func(st *state) error {
		for i := len(st.logs) - 1; i >= 0; i-- {
			if st.logs[i].BookID == bookID {
				out = append(out, st.logs[i])
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	if err := r.s.injected("Notifications.Create"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		st.notifications = append(st.notifications, copyNotification(*n))
		return nil
	})
}

func (r *notificationRepo) ListByRecipient(_ context.Context, recipientID string, page, perPage int) ([]domain.Notification, int, error) {
	var mine []domain.Notification
	err := r.s.view(func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			if st.notifications[i].RecipientID == recipientID {
				mine = append(mine, copyNotification(st.notifications[i]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	start, end := pageBounds(len(mine), page, perPage)
	return mine[start:end], len(mine), nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, recipientID string, at time.Time) error {
	return r.s.update(func(st *state) error {
		for i := range st.notifications {
			n := &st.notifications[i]
			if n.ID != id || n.RecipientID != recipientID {
				continue
			}
			if !n.Read {
				n.Read = true
				readAt := at
				n.ReadAt = &readAt
			}
			return nil
		}
		return apperrors.NotFound("notification", id)
	})
}

type appealRepo struct{ s *Store }

func (r *appealRepo) Create(_ context.Context, appeal *domain.Appeal) error {
	if err := r.s.injected("Appeals.Create"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		st.appeals[appeal.ID] = *appeal
		return nil
	})
}

func (r *appealRepo) GetByID(_ context.Context, id string) (*domain.Appeal, error) {
	var out domain.Appeal
	err := r.s.view(func(st *state) error {
		a, ok := st.appeals[id]
		if !ok {
			return apperrors.NotFound("appeal", id)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *appealRepo) GetForUpdate(ctx context.Context, id string) (*domain.Appeal, error) {
	return r.GetByID(ctx, id)
}

func (r *appealRepo) List(_ context.Context, filter repository.AppealFilter) ([]domain.Appeal, int, error) {
	var matched []domain.Appeal
	err := r.s.view(func(st *state) error {
		for _, a := range st.appeals {
			if filter.Status != nil && a.Status != *filter.Status {
				continue
			}
			matched = append(matched, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sortAppeals(matched)

	start, end := pageBounds(len(matched), filter.Page, filter.PerPage)
	return matched[start:end], len(matched), nil
}

func (r *appealRepo) Update(_ context.Context, appeal *domain.Appeal) error {
	if err := r.s.injected("Appeals.Update"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		if _, ok := st.appeals[appeal.ID]; !ok {
			return apperrors.NotFound("appeal", appeal.ID)
		}
		st.appeals[appeal.ID] = *appeal
		return nil
	})
}

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out domain.User
	err := r.s.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperrors.NotFound("user", id)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByIDs(_ context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	err := r.s.view(func(st *state) error {
		for _, id := range ids {
			if u, ok := st.users[id]; ok {
				out[id] = u
			}
		}
		return nil
	})
	return out, err
}

type deliveryRepo struct{ s *Store }

func (r *deliveryRepo) Create(_ context.Context, d *domain.Delivery) error {
	if err := r.s.injected("Deliveries.Create"); err != nil {
		return err
	}
	return r.s.update(func(st *state) error {
		st.deliveries[d.ID] = *d
		return nil
	})
}

func (r *deliveryRepo) GetByID(_ context.Context, id string) (*domain.Delivery, error) {
	var out domain.Delivery
	err := r.s.view(func(st *state) error {
		d, ok := st.deliveries[id]
		if !ok {
			return apperrors.NotFound("delivery", id)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *deliveryRepo) Update(_ context.Context, d *domain.Delivery) error {
	return r.s.update(func(st *state) error {
		if _, ok := st.deliveries[d.ID]; !ok {
			return apperrors.NotFound("delivery", d.ID)
		}
		st.deliveries[d.ID] = *d
		return nil
	})
}

func (r *deliveryRepo) ListRetryable(_ context.Context, now time.Time, limit int) ([]domain.Delivery, error) {
	var due []domain.Delivery
	err := r.s.view(func(st *state) error {
		for _, d := range st.deliveries {
			if d.Status == domain.DeliveryStatusPending && !d.NextAttemptAt.After(now) {
				due = append(due, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
