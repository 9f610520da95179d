package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wansing/editorial/core"
	"github.com/wansing/editorial/util"
)

// A Sender delivers a single event. It may block.
type Sender interface {
	Send(ctx context.Context, event core.Event) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, event core.Event) error

func (f SenderFunc) Send(ctx context.Context, event core.Event) error {
	return f(ctx, event)
}

// Fanout sends every event to all senders, even if some of them fail.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, event core.Event) error {
	var errs []error
	for _, sender := range f {
		if err := sender.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Topic passes only the events of one topic to the sender.
func Topic(topic string, sender Sender) Sender {
	return SenderFunc(func(ctx context.Context, event core.Event) error {
		if event.Topic() != topic {
			return nil
		}
		return sender.Send(ctx, event)
	})
}

// LogSender writes events to a logger.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, event core.Event) error {
	switch e := event.(type) {
	case *core.WorkflowEvent:
		s.Logger.InfoContext(ctx, "workflow event", "type", string(e.EventType), "article", e.ArticleID, "user", e.UserID, "from", string(e.Data.PreviousStatus), "to", string(e.Data.NewStatus), "notes", util.Trunc(e.Data.Notes, 60))
	case *core.NotificationEvent:
		s.Logger.InfoContext(ctx, "notification", "template", string(e.Template), "recipient", e.Recipient.UserID, "email", e.Recipient.Email)
	default:
		s.Logger.InfoContext(ctx, "event", "topic", event.Topic())
	}
	return nil
}
