package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMinReferences = 2
	DefaultTimeout       = 5 * time.Second
)

// Engine is the workflow state machine. It holds no article state, so one Engine can serve any number of concurrent requests.
type Engine struct {
	Articles   ArticleDB
	References ReferenceDB
	Dispatcher Dispatcher
	Logger     *slog.Logger

	MinReferences int           // required to leave research and to publish
	Timeout       time.Duration // per repository call, zero means no timeout

	Now   func() time.Time
	NewID func() string
}

// NewEngine returns an Engine with default settings. A nil dispatcher discards events, a nil logger discards log lines.
func NewEngine(articles ArticleDB, references ReferenceDB, dispatcher Dispatcher, logger *slog.Logger) *Engine {
	if dispatcher == nil {
		dispatcher = DiscardDispatcher{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	return &Engine{
		Articles:      articles,
		References:    references,
		Dispatcher:    dispatcher,
		Logger:        logger,
		MinReferences: DefaultMinReferences,
		Timeout:       DefaultTimeout,
		Now:           time.Now,
		NewID:         uuid.NewString,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) {
	return len(p), nil
}

func (e *Engine) now() time.Time {
	return e.Now().UTC()
}

// call runs a repository operation with the configured timeout and maps the timeout to ErrUnavailable.
func (e *Engine) call(ctx context.Context, f func(ctx context.Context) error) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return unavailable(f(ctx))
}

func (e *Engine) getArticle(ctx context.Context, id string) (*Article, error) {
	var article *Article
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		article, err = e.Articles.GetArticle(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return article, nil
}

func (e *Engine) compareAndSet(ctx context.Context, id string, expected Status, mutate Mutation) (*Article, error) {
	var article *Article
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		article, err = e.Articles.CompareAndSet(ctx, id, expected, mutate)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update article %s: %w", id, err)
	}
	return article, nil
}

// Apply performs an action on the article with the given id.
//
// It reads the article, looks up the transition for the action and the current status, checks role and preconditions,
// and writes the result conditionally on the status it has read. After the write has been committed, events are dispatched.
// Dispatch failures are logged and don't affect the result.
func (e *Engine) Apply(ctx context.Context, id string, actor Actor, action Action) (*Article, error) {

	action = normalize(action)
	if action == nil {
		return nil, invalid("unknown action")
	}

	article, err := e.getArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	t, err := e.decide(ctx, article, actor, action)
	if err != nil {
		return nil, err
	}

	var now = e.now()
	var next = t.next(action)
	if !next.Valid() {
		return nil, fmt.Errorf("transition %s from %s yields invalid status %q", t.kind, t.from, next)
	}

	updated, err := e.compareAndSet(ctx, article.ID, article.Status, func(stored *Article) {
		if t.mutate != nil {
			t.mutate(stored, actor, action, now)
		}
		stored.Status = next
		stored.UpdatedAt = now
	})
	if errors.Is(err, ErrConflict) {
		return nil, e.explainConflict(ctx, id, actor, action, err)
	}
	if err != nil {
		return nil, err
	}

	e.Logger.Info("transition", "article", updated.ID, "action", string(t.kind), "from", string(article.Status), "to", string(next), "actor", actor.ID)

	e.publish(ctx, t, article.Status, updated, actor, action, now)

	return updated, nil
}

// decide returns the applicable transition or the reason why there is none.
func (e *Engine) decide(ctx context.Context, article *Article, actor Actor, action Action) (*transition, error) {

	if expected := action.expected(); expected != "" && expected != article.Status {
		return nil, fmt.Errorf("%w: article %s is %s, not %s", ErrConflict, article.ID, article.Status, expected)
	}

	t := lookup(action.Kind(), article.Status)
	if t == nil {
		return nil, fmt.Errorf("%w: %s is not possible in status %s", ErrInvalidTransition, action.Kind(), article.Status)
	}

	if !t.allow(article, actor) {
		return nil, fmt.Errorf("%w: %s requires %s", ErrForbidden, action.Kind(), t.who)
	}

	if t.check != nil {
		if err := t.check(ctx, e, article, actor, action); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// explainConflict reads the article again after a lost compare-and-set. If someone else has taken the phase meanwhile, the specific
// AlreadyAssigned error is returned instead of the generic conflict.
func (e *Engine) explainConflict(ctx context.Context, id string, actor Actor, action Action, conflict error) error {
	fresh, err := e.getArticle(ctx, id)
	if err != nil {
		return conflict
	}
	if _, err := e.decide(ctx, fresh, actor, action); ReasonOf(err) == AlreadyAssigned {
		return err
	}
	return conflict
}

func (e *Engine) publish(ctx context.Context, t *transition, previous Status, article *Article, actor Actor, action Action, now time.Time) {

	e.dispatch(ctx, &WorkflowEvent{
		EventType: t.event(action),
		ArticleID: article.ID,
		UserID:    actor.ID,
		Timestamp: now,
		Data: TransitionData{
			PreviousStatus: previous,
			NewStatus:      article.Status,
			Notes:          notesOf(action),
		},
	})

	if t.mail == "" || article.PrimaryAuthor() == "" {
		return
	}

	var data = map[string]interface{}{
		"articleId":    article.ID,
		"articleTitle": article.Title,
		"timestamp":    now,
	}
	if t.data != nil {
		t.data(data, actor, action)
	}

	e.dispatch(ctx, &NotificationEvent{
		Type: "EMAIL",
		Recipient: Recipient{
			UserID: article.PrimaryAuthor(),
		},
		Template: t.mail,
		Data:     data,
	})
}

func (e *Engine) dispatch(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("dispatcher panicked", "topic", event.Topic(), "panic", r)
		}
	}()
	if err := e.Dispatcher.Dispatch(ctx, event); err != nil {
		e.Logger.Warn("dispatching event failed", "topic", event.Topic(), "err", err)
	}
}

func notesOf(action Action) string {
	switch a := action.(type) {
	case Submit:
		return a.Notes
	case CompleteResearch:
		return a.Notes
	case SubmitReview:
		return a.Notes
	case Resubmit:
		return a.Notes
	case Archive:
		return a.Notes
	}
	return ""
}

// normalize dereferences pointers to actions, so the transition table can use value type assertions.
func normalize(action Action) Action {
	switch a := action.(type) {
	case *Submit:
		return deref(a)
	case *StartResearch:
		return deref(a)
	case *CompleteResearch:
		return deref(a)
	case *StartReview:
		return deref(a)
	case *SubmitReview:
		return deref(a)
	case *Resubmit:
		return deref(a)
	case *Publish:
		return deref(a)
	case *Archive:
		return deref(a)
	}
	return action
}

func deref[T Action](p *T) Action {
	if p == nil {
		return nil
	}
	return *p
}
