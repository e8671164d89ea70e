package domain

import (
	"time"
)

// Book is a catalog entry that owns its reviews. Rating and TotalReviews are
// derived from Reviews and must be refreshed with Recalculate after every
// change to the review list.
type Book struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AuthorName   string    `json:"authorName"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	Category     string    `json:"category"`
	Tags         []string  `json:"tags"`
	AuthorID     string    `json:"authorRef"`
	Reviews      []Review  `json:"reviews,omitempty"`
	Rating       float64   `json:"rating"`
	TotalReviews int       `json:"totalReviews"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Recalculate recomputes TotalReviews and Rating from scratch. An empty
// review list yields a rating of 0.
func (b *Book) Recalculate() {
	b.TotalReviews = len(b.Reviews)
	if b.TotalReviews == 0 {
		b.Rating = 0
		return
	}

	sum := 0
	for _, r := range b.Reviews {
		sum += r.Rating
	}
	b.Rating = float64(sum) / float64(b.TotalReviews)
}

// FindReview returns a pointer into Reviews so callers can mutate in place.
func (b *Book) FindReview(reviewID string) (*Review, bool) {
	for i := range b.Reviews {
		if b.Reviews[i].ID == reviewID {
			return &b.Reviews[i], true
		}
	}
	return nil, false
}

// ReviewBy returns the review written by userID, if any.
func (b *Book) ReviewBy(userID string) (*Review, bool) {
	for i := range b.Reviews {
		if b.Reviews[i].UserID == userID {
			return &b.Reviews[i], true
		}
	}
	return nil, false
}

// AddReview appends r and refreshes the aggregates.
func (b *Book) AddReview(r Review) {
	b.Reviews = append(b.Reviews, r)
	b.Recalculate()
}

// RemoveReview drops the review with the given id, keeping the order of the
// rest. It reports whether a review was removed.
func (b *Book) RemoveReview(reviewID string) bool {
	for i := range b.Reviews {
		if b.Reviews[i].ID == reviewID {
			b.Reviews = append(b.Reviews[:i], b.Reviews[i+1:]...)
			b.Recalculate()
			return true
		}
	}
	return false
}

// IsAuthor reports whether userID owns the book.
func (b *Book) IsAuthor(userID string) bool {
	return userID != "" && b.AuthorID == userID
}
