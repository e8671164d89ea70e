package domain

import (
	"time"
)

// AppealKindReview marks a support ticket that contests a review moderation.
const AppealKindReview = "review_appeal"

// Appeal status constants.
const (
	AppealStatusPending  = "pending"
	AppealStatusResolved = "resolved"
	AppealStatusRejected = "rejected"
)

// Appeal is a support ticket filed by a reviewer against a moderation action.
type Appeal struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	UserID     string    `json:"userId"`
	BookID     string    `json:"bookId"`
	ReviewID   string    `json:"reviewId"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	Response   string    `json:"response,omitempty"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsValidAppealStatus reports whether status is a known appeal status.
func IsValidAppealStatus(status string) bool {
	switch status {
	case AppealStatusPending, AppealStatusResolved, AppealStatusRejected:
		return true
	}
	return false
}

// Resolve moves a pending appeal to a final status. It returns false when the
// appeal was already closed or status is not a final status.
func (a *Appeal) Resolve(status, response, resolvedBy string, at time.Time) bool {
	if a.Status != AppealStatusPending {
		return false
	}
	if status != AppealStatusResolved && status != AppealStatusRejected {
		return false
	}
	a.Status = status
	a.Response = response
	a.ResolvedBy = resolvedBy
	a.UpdatedAt = at
	return true
}
