package notify

import (
	"context"

	"github.com/wansing/editorial/core"
)

// A Directory returns the e-mail address of a user. core.AuthDB is a Directory.
type Directory interface {
	Email(userID string) (string, error)
}

// EmailLookup fills in the recipient e-mail address of notification events before passing them on.
// If the address can't be found, the event is passed on without it and the mailer has to resolve the user id.
type EmailLookup struct {
	Directory Directory
	Next      Sender
}

func (l EmailLookup) Send(ctx context.Context, event core.Event) error {
	if n, ok := event.(*core.NotificationEvent); ok && n.Recipient.Email == "" {
		if email, err := l.Directory.Email(n.Recipient.UserID); err == nil {
			var copied = *n
			copied.Recipient.Email = email
			event = &copied
		}
	}
	return l.Next.Send(ctx, event)
}
