package domain

import (
	"time"
)

// Delivery status constants.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// Delivery records one outbound email and every attempt to send it. Rows that
// are still pending after a failed attempt are retried by the sweeper until
// MaxAttempts is reached.
type Delivery struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notificationId"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	MaxAttempts    int       `json:"maxAttempts"`
	LastError      string    `json:"lastError,omitempty"`
	NextAttemptAt  time.Time `json:"nextAttemptAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RecordFailure counts a failed attempt. The delivery stays pending with a
// backoff until attempts run out, then it is marked failed.
func (d *Delivery) RecordFailure(err error, now time.Time, backoff time.Duration) {
	d.Attempts++
	d.LastError = err.Error()
	d.UpdatedAt = now
	if d.Attempts >= d.MaxAttempts {
		d.Status = DeliveryStatusFailed
		return
	}
	d.Status = DeliveryStatusPending
	d.NextAttemptAt = now.Add(backoff << (d.Attempts - 1))
}

// RecordSuccess marks the delivery as sent.
func (d *Delivery) RecordSuccess(now time.Time) {
	d.Attempts++
	d.Status = DeliveryStatusSent
	d.LastError = ""
	d.UpdatedAt = now
}
