package notifier

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Message is one report rendered for every channel.
type Message struct {
	Subject string
	// HTML is a full HTML body for email.
	HTML string
	// Text is a monospaced plain-text body for chat channels.
	Text string
	// Summary is a one-line digest, e.g. "GO: AAPL | CONSIDER: MSFT".
	Summary string
}

// Notifier delivers a Message to one channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Name() string
}

// Multi fans a message out to several notifiers. Every notifier is attempted.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			log.Errorf("%s notification failed: %v", n.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
