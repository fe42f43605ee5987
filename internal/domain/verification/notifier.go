package verification

import (
	"context"
	"log/slog"
	"time"
)

// Message is what a user receives to confirm their address.
type Message struct {
	To        string
	Name      string
	Link      string
	ExpiresAt time.Time
}

// Notifier delivers verification messages.
type Notifier interface {
	SendVerification(ctx context.Context, msg Message) error
}

// LogNotifier writes verification links to the log instead of sending mail.
type LogNotifier struct{}

func (LogNotifier) SendVerification(_ context.Context, msg Message) error {
	slog.Info("Verification link issued", "email", msg.To, "link", msg.Link, "expires_at", msg.ExpiresAt)
	return nil
}
