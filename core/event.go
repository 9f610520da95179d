package core

import (
	"context"
	"time"
)

// Topics, one per event type.
const (
	WorkflowTopic     = "workflow"
	NotificationTopic = "notifications"
)

// An Event is published by the engine after a transition has been committed.
type Event interface {
	Topic() string
}

type EventType string

const (
	ArticleSubmitted   EventType = "ARTICLE_SUBMITTED"
	ResearchStarted    EventType = "RESEARCH_STARTED"
	ResearchCompleted  EventType = "RESEARCH_COMPLETED"
	ReviewStarted      EventType = "REVIEW_STARTED"
	ArticleApproved    EventType = "ARTICLE_APPROVED"
	RevisionRequested  EventType = "REVISION_REQUESTED"
	ArticleRejected    EventType = "ARTICLE_REJECTED"
	ArticleResubmitted EventType = "ARTICLE_RESUBMITTED"
	ArticlePublished   EventType = "ARTICLE_PUBLISHED"
	ArticleArchived    EventType = "ARTICLE_ARCHIVED"
)

type TransitionData struct {
	PreviousStatus Status `json:"previousStatus"`
	NewStatus      Status `json:"newStatus"`
	Notes          string `json:"notes,omitempty"`
}

type WorkflowEvent struct {
	EventType EventType      `json:"eventType"`
	ArticleID string         `json:"articleId"`
	UserID    string         `json:"userId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      TransitionData `json:"data"`
}

func (*WorkflowEvent) Topic() string {
	return WorkflowTopic
}

// Template names an e-mail template of the external mailer.
type Template string

const (
	ArticleSubmittedMail  Template = "ARTICLE_SUBMITTED"
	ResearchStartedMail   Template = "RESEARCH_STARTED"
	ResearchCompletedMail Template = "RESEARCH_COMPLETED"
	ArticleReviewedMail   Template = "ARTICLE_REVIEWED"
	ArticleArchivedMail   Template = "ARTICLE_ARCHIVED"
)

type Recipient struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// NotificationEvent is consumed by the external mailer, which does the rendering.
type NotificationEvent struct {
	Type      string                 `json:"type"` // always "EMAIL"
	Recipient Recipient              `json:"recipient"`
	Template  Template               `json:"template"`
	Data      map[string]interface{} `json:"data"`
}

func (*NotificationEvent) Topic() string {
	return NotificationTopic
}

// A Dispatcher delivers events. Dispatch must not block on delivery. An error means that the event could not be accepted.
// The engine logs dispatch errors and does not fail the transition, because the transition has already been committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// DiscardDispatcher drops all events.
type DiscardDispatcher struct{}

func (DiscardDispatcher) Dispatch(context.Context, Event) error {
	return nil
}
