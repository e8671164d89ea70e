package sender

import (
	"context"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender defines the interface for delivering an email through a transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}
