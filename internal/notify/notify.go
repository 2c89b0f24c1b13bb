// Package notify delivers customer messages such as receipts. Senders are
// interchangeable: a file drop for development, an AMQP queue read by an
// external mailer, or nothing at all.
package notify

import (
	"context"
	"errors"
)

// ErrNoRecipient is returned when a message has no address.
var ErrNoRecipient = errors.New("message has no recipient")

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Discard drops every message.
type Discard struct{}

func (Discard) Send(ctx context.Context, msg Message) error {
	return nil
}
