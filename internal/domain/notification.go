package domain

import (
	"time"
)

// Notification type constants.
const (
	NotificationTypeReviewEdited   = "review_edited"
	NotificationTypeReviewDeleted  = "review_deleted"
	NotificationTypeAppealResolved = "appeal_resolved"
)

// Notification is an in-app mailbox entry.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipientId"`
	SenderID    string     `json:"senderId"`
	Type        string     `json:"type"`
	Message     string     `json:"message"`
	BookID      string     `json:"bookId,omitempty"`
	Read        bool       `json:"read"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
