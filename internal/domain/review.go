package domain

import (
	"time"
)

// Rating bounds accepted for a review.
const (
	MinRating = 1
	MaxRating = 5
)

// DefaultEditWindow is how long after posting a review the book's author may
// still moderate it. Admins are not bound by it.
const DefaultEditWindow = 7 * 24 * time.Hour

// Review is a single user's rating of a book. It has no life outside its Book.
type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Date      time.Time `json:"date"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot captures the moderated fields of the review.
func (r *Review) Snapshot() *ReviewSnapshot {
	return &ReviewSnapshot{Rating: r.Rating, Comment: r.Comment}
}

// EditWindowExpired reports whether more than window has passed since the
// review was posted. A review exactly window old is still editable.
func (r *Review) EditWindowExpired(now time.Time, window time.Duration) bool {
	return now.Sub(r.Date) > window
}

// ValidRating reports whether rating is within MinRating..MaxRating.
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// ReviewSnapshot is the before/after value recorded in the moderation log.
type ReviewSnapshot struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}
