package mongo

import (
	"time"

	"github.com/utafrali/folio/internal/domain"
)

// Collection names.
const (
	booksCollection         = "books"
	moderationLogCollection = "moderation_log"
	notificationsCollection = "notifications"
	appealsCollection       = "appeals"
	usersCollection         = "users"
	deliveriesCollection    = "deliveries"
)

// bookDoc embeds reviews in the book document. LockVersion is bumped by
// GetForUpdate so that two transactions touching the same book conflict.
type bookDoc struct {
	ID           string      `bson:"_id"`
	Title        string      `bson:"title"`
	AuthorName   string      `bson:"author_name"`
	Description  string      `bson:"description"`
	Price        int64       `bson:"price"`
	Category     string      `bson:"category"`
	Tags         []string    `bson:"tags"`
	AuthorID     string      `bson:"author_id"`
	Reviews      []reviewDoc `bson:"reviews"`
	Rating       float64     `bson:"rating"`
	TotalReviews int         `bson:"total_reviews"`
	LockVersion  int64       `bson:"lock_version"`
	CreatedAt    time.Time   `bson:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at"`
}

type reviewDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	Date      time.Time `bson:"date"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newBookDoc(b *domain.Book) bookDoc {
	doc := bookDoc{
		ID:           b.ID,
		Title:        b.Title,
		AuthorName:   b.AuthorName,
		Description:  b.Description,
		Price:        b.Price,
		Category:     b.Category,
		Tags:         b.Tags,
		AuthorID:     b.AuthorID,
		Reviews:      make([]reviewDoc, 0, len(b.Reviews)),
		Rating:       b.Rating,
		TotalReviews: b.TotalReviews,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	for i := range b.Reviews {
		doc.Reviews = append(doc.Reviews, newReviewDoc(&b.Reviews[i]))
	}
	return doc
}

func (d bookDoc) toDomain() *domain.Book {
	b := &domain.Book{
		ID:           d.ID,
		Title:        d.Title,
		AuthorName:   d.AuthorName,
		Description:  d.Description,
		Price:        d.Price,
		Category:     d.Category,
		Tags:         d.Tags,
		AuthorID:     d.AuthorID,
		Reviews:      make([]domain.Review, 0, len(d.Reviews)),
		Rating:       d.Rating,
		TotalReviews: d.TotalReviews,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for _, r := range d.Reviews {
		b.Reviews = append(b.Reviews, domain.Review{
			ID:        r.ID,
			BookID:    d.ID,
			UserID:    r.UserID,
			Rating:    r.Rating,
			Comment:   r.Comment,
			Date:      r.Date,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return b
}

func newReviewDoc(r *domain.Review) reviewDoc {
	return reviewDoc{
		ID:        r.ID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		Date:      r.Date,
		UpdatedAt: r.UpdatedAt,
	}
}

type snapshotDoc struct {
	Rating  int    `bson:"rating"`
	Comment string `bson:"comment"`
}

type moderationDoc struct {
	ID           string       `bson:"_id"`
	Action       string       `bson:"action"`
	BookID       string       `bson:"book_id"`
	ReviewID     string       `bson:"review_id"`
	ModeratorID  string       `bson:"moderator_id"`
	TargetUserID string       `bson:"target_user_id"`
	Reason       string       `bson:"reason,omitempty"`
	OldValue     *snapshotDoc `bson:"old_value,omitempty"`
	NewValue     *snapshotDoc `bson:"new_value,omitempty"`
	CreatedAt    time.Time    `bson:"created_at"`
}

func toSnapshotDoc(s *domain.ReviewSnapshot) *snapshotDoc {
	if s == nil {
		return nil
	}
	return &snapshotDoc{Rating: s.Rating, Comment: s.Comment}
}

func (s *snapshotDoc) toDomain() *domain.ReviewSnapshot {
	if s == nil {
		return nil
	}
	return &domain.ReviewSnapshot{Rating: s.Rating, Comment: s.Comment}
}

func (d moderationDoc) toDomain() domain.ModerationLogEntry {
	return domain.ModerationLogEntry{
		ID:           d.ID,
		Action:       d.Action,
		BookID:       d.BookID,
		ReviewID:     d.ReviewID,
		ModeratorID:  d.ModeratorID,
		TargetUserID: d.TargetUserID,
		Reason:       d.Reason,
		OldValue:     d.OldValue.toDomain(),
		NewValue:     d.NewValue.toDomain(),
		CreatedAt:    d.CreatedAt,
	}
}

type notificationDoc struct {
	ID          string     `bson:"_id"`
	RecipientID string     `bson:"recipient_id"`
	SenderID    string     `bson:"sender_id"`
	Type        string     `bson:"type"`
	Message     string     `bson:"message"`
	BookID      string     `bson:"book_id,omitempty"`
	Read        bool       `bson:"read"`
	ReadAt      *time.Time `bson:"read_at"`
	CreatedAt   time.Time  `bson:"created_at"`
}

func (d notificationDoc) toDomain() domain.Notification {
	return domain.Notification(d)
}

type appealDoc struct {
	ID          string    `bson:"_id"`
	Kind        string    `bson:"kind"`
	UserID      string    `bson:"user_id"`
	BookID      string    `bson:"book_id"`
	ReviewID    string    `bson:"review_id"`
	Message     string    `bson:"message"`
	Status      string    `bson:"status"`
	Response    string    `bson:"response"`
	ResolvedBy  string    `bson:"resolved_by,omitempty"`
	LockVersion int64     `bson:"lock_version"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newAppealDoc(a *domain.Appeal) appealDoc {
	return appealDoc{
		ID:         a.ID,
		Kind:       a.Kind,
		UserID:     a.UserID,
		BookID:     a.BookID,
		ReviewID:   a.ReviewID,
		Message:    a.Message,
		Status:     a.Status,
		Response:   a.Response,
		ResolvedBy: a.ResolvedBy,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func (d appealDoc) toDomain() *domain.Appeal {
	return &domain.Appeal{
		ID:         d.ID,
		Kind:       d.Kind,
		UserID:     d.UserID,
		BookID:     d.BookID,
		ReviewID:   d.ReviewID,
		Message:    d.Message,
		Status:     d.Status,
		Response:   d.Response,
		ResolvedBy: d.ResolvedBy,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type userDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Role  string `bson:"role"`
}

type deliveryDoc struct {
	ID             string    `bson:"_id"`
	NotificationID string    `bson:"notification_id"`
	Recipient      string    `bson:"recipient"`
	Subject        string    `bson:"subject"`
	Body           string    `bson:"body"`
	Status         string    `bson:"status"`
	Attempts       int       `bson:"attempts"`
	MaxAttempts    int       `bson:"max_attempts"`
	LastError      string    `bson:"last_error"`
	NextAttemptAt  time.Time `bson:"next_attempt_at"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}
