package domain

import (
	"time"
)

// Moderation actions.
const (
	ModerationActionEdit   = "edit"
	ModerationActionDelete = "delete"
)

// MinReasonLength is the shortest delete reason accepted, counted in
// characters after trimming surrounding whitespace.
const MinReasonLength = 5

// ModerationLogEntry is an immutable record of one moderation action against
// a review. ReviewID is kept as an opaque string because the review is gone
// after a delete.
type ModerationLogEntry struct {
	ID             string          `json:"id"`
	Action         string          `json:"action"`
	BookID         string          `json:"bookId"`
	ReviewID       string          `json:"reviewId"`
	ModeratorID    string          `json:"moderatorId"`
	ModeratorName  string          `json:"moderatorName,omitempty"`
	TargetUserID   string          `json:"targetUserId"`
	TargetUserName string          `json:"targetUserName,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	OldValue       *ReviewSnapshot `json:"oldValue,omitempty"`
	NewValue       *ReviewSnapshot `json:"newValue,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}
