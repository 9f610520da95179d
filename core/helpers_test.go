package core_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/wansing/editorial/core"
	"github.com/wansing/editorial/memdb"
)

var (
	author      = core.Actor{ID: "u1", Email: "u1@example.org", Roles: core.NewRoles(core.Author)}
	coauthor    = core.Actor{ID: "u2", Roles: core.NewRoles(core.Author)}
	researcher  = core.Actor{ID: "r1", Roles: core.NewRoles(core.Researcher)}
	researcher2 = core.Actor{ID: "r2", Roles: core.NewRoles(core.Researcher)}
	reviewer    = core.Actor{ID: "v1", Roles: core.NewRoles(core.Reviewer)}
	editor      = core.Actor{ID: "e1", Roles: core.NewRoles(core.Editor)}
	nobody      = core.Actor{ID: "x1", Roles: core.NewRoles()}
)

// recorder is a dispatcher which keeps all events.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (r *recorder) Dispatch(_ context.Context, e core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) workflow() []*core.WorkflowEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*core.WorkflowEvent
	for _, e := range r.events {
		if w, ok := e.(*core.WorkflowEvent); ok {
			result = append(result, w)
		}
	}
	return result
}

func (r *recorder) notifications() []*core.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*core.NotificationEvent
	for _, e := range r.events {
		if n, ok := e.(*core.NotificationEvent); ok {
			result = append(result, n)
		}
	}
	return result
}

// clock advances by one second on every call, so timestamps are distinct and ordered.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	engine     *core.Engine
	articles   *memdb.ArticleDB
	references *memdb.ReferenceDB
	events     *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var f = &fixture{
		articles:   memdb.NewArticleDB(),
		references: memdb.NewReferenceDB(),
		events:     &recorder{},
	}
	f.engine = core.NewEngine(f.articles, f.references, f.events, nil)
	var c = &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.engine.Now = c.Now
	var mu sync.Mutex
	var n = 0
	f.engine.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "id" + strconv.Itoa(n)
	}
	return f
}

func (f *fixture) draft(t *testing.T) *core.Article {
	t.Helper()
	a, err := f.engine.CreateArticle(context.Background(), author, core.ArticleDraft{
		Title:     "Rivers of the North",
		Content:   "The rivers of the north are long.",
		AuthorIDs: []string{author.ID, coauthor.ID},
		Tags:      []string{"Nature"},
	})
	if err != nil {
		t.Fatalf("creating article: %v", err)
	}
	return a
}

func (f *fixture) reference(t *testing.T, verified bool) *core.Reference {
	t.Helper()
	ctx := context.Background()
	ref, err := f.engine.CreateReference(ctx, researcher, core.ReferenceDraft{
		Title:       "Hydrology Survey",
		URL:         "https://example.org/survey",
		Authors:     []string{"A. Smith"},
		Description: "A survey of rivers.",
		Type:        core.Government,
	})
	if err != nil {
		t.Fatalf("creating reference: %v", err)
	}
	if verified {
		if ref, err = f.engine.VerifyReference(ctx, editor, ref.ID); err != nil {
			t.Fatalf("verifying reference: %v", err)
		}
	}
	return ref
}

func (f *fixture) apply(t *testing.T, id string, actor core.Actor, action core.Action) *core.Article {
	t.Helper()
	a, err := f.engine.Apply(context.Background(), id, actor, action)
	if err != nil {
		t.Fatalf("%s as %s: %v", action.Kind(), actor.ID, err)
	}
	return a
}

// inReview returns an article in REVIEW_IN_PROGRESS, assigned to reviewer, with the given references.
func (f *fixture) inReview(t *testing.T, refs ...*core.Reference) *core.Article {
	t.Helper()
	var ids []string
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	a := f.draft(t)
	f.apply(t, a.ID, author, core.Submit{})
	f.apply(t, a.ID, researcher, core.StartResearch{})
	f.apply(t, a.ID, researcher, core.CompleteResearch{ReferenceIDs: ids, Notes: "checked"})
	return f.apply(t, a.ID, reviewer, core.StartReview{})
}
