package core_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/wansing/editorial/core"
)

func TestCreateArticleRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	created := f.draft(t)

	fetched, err := f.engine.GetArticle(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if !reflect.DeepEqual(created, fetched) {
		t.Fatalf("round trip mismatch:\ncreated %+v\nfetched %+v", created, fetched)
	}
	if !reflect.DeepEqual(fetched.Tags, []string{"nature"}) {
		t.Fatalf("tags not normalized: %v", fetched.Tags)
	}
}

func TestCreateArticleValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var valid = core.ArticleDraft{
		Title:     "Title",
		Content:   "Content",
		AuthorIDs: []string{author.ID},
		Tags:      []string{"tag"},
	}

	var tests = []struct {
		name   string
		actor  core.Actor
		modify func(d *core.ArticleDraft)
		is     error
	}{
		{"empty title", author, func(d *core.ArticleDraft) { d.Title = "" }, core.ErrInvalidInput},
		{"long title", author, func(d *core.ArticleDraft) { d.Title = strings.Repeat("ä", core.MaxTitleLength+1) }, core.ErrInvalidInput},
		{"long subtitle", author, func(d *core.ArticleDraft) { d.Subtitle = strings.Repeat("x", core.MaxSubtitleLength+1) }, core.ErrInvalidInput},
		{"empty content", author, func(d *core.ArticleDraft) { d.Content = "" }, core.ErrInvalidInput},
		{"no authors", author, func(d *core.ArticleDraft) { d.AuthorIDs = nil }, core.ErrInvalidInput},
		{"too many authors", author, func(d *core.ArticleDraft) { d.AuthorIDs = []string{"u1", "a", "b", "c", "d", "e"} }, core.ErrInvalidInput},
		{"duplicate authors", author, func(d *core.ArticleDraft) { d.AuthorIDs = []string{"u1", "u1"} }, core.ErrInvalidInput},
		{"no tags", author, func(d *core.ArticleDraft) { d.Tags = []string{" "} }, core.ErrInvalidInput},
		{"too many tags", author, func(d *core.ArticleDraft) {
			d.Tags = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
		}, core.ErrInvalidInput},
		{"actor not among authors", author, func(d *core.ArticleDraft) { d.AuthorIDs = []string{"u9"} }, core.ErrForbidden},
		{"no author role", researcher, func(d *core.ArticleDraft) { d.AuthorIDs = []string{researcher.ID} }, core.ErrForbidden},
	}

	for _, tc := range tests {
		var draft = valid
		draft.AuthorIDs = append([]string(nil), valid.AuthorIDs...)
		tc.modify(&draft)
		if _, err := f.engine.CreateArticle(ctx, tc.actor, draft); !errors.Is(err, tc.is) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.is, err)
		}
	}

	// title length is counted in runes
	var draft = valid
	draft.Title = strings.Repeat("ä", core.MaxTitleLength)
	if _, err := f.engine.CreateArticle(ctx, author, draft); err != nil {
		t.Fatalf("title with %d runes: %v", core.MaxTitleLength, err)
	}
}

func TestUpdateArticle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.draft(t)

	title := "New Title"
	got, err := f.engine.UpdateArticle(ctx, coauthor, a.ID, core.ArticlePatch{Title: &title, Tags: []string{"A", "a", "B"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || !reflect.DeepEqual(got.Tags, []string{"a", "b"}) || !got.UpdatedAt.After(a.UpdatedAt) {
		t.Fatalf("unexpected article after update: %+v", got)
	}
	if got.Status != core.Draft || got.CreatedAt != a.CreatedAt {
		t.Fatalf("update changed status or createdAt")
	}

	if _, err := f.engine.UpdateArticle(ctx, author, a.ID, core.ArticlePatch{}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("empty patch: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.engine.UpdateArticle(ctx, researcher, a.ID, core.ArticlePatch{Title: &title}); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("non-author: expected ErrForbidden, got %v", err)
	}

	f.apply(t, a.ID, author, core.Submit{})

	if _, err := f.engine.UpdateArticle(ctx, author, a.ID, core.ArticlePatch{Title: &title}); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("author after submit: expected ErrForbidden, got %v", err)
	}
	if _, err := f.engine.UpdateArticle(ctx, editor, a.ID, core.ArticlePatch{Title: &title}); err != nil {
		t.Fatalf("editor after submit: %v", err)
	}
}

func TestListArticles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	first := f.draft(t)
	second := f.draft(t)
	f.apply(t, second.ID, author, core.Submit{})

	all, err := f.engine.ListArticles(ctx, core.Filter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 articles, got %d (%v)", len(all), err)
	}
	if all[0].ID != second.ID {
		t.Fatalf("expected most recently updated article first")
	}

	drafts, err := f.engine.ListArticles(ctx, core.Filter{Status: core.Draft})
	if err != nil || len(drafts) != 1 || drafts[0].ID != first.ID {
		t.Fatalf("unexpected drafts %v (%v)", drafts, err)
	}

	byTag, _ := f.engine.ListArticles(ctx, core.Filter{Tag: " NATURE "})
	if len(byTag) != 2 {
		t.Fatalf("expected 2 articles tagged nature, got %d", len(byTag))
	}

	byAuthor, _ := f.engine.ListArticles(ctx, core.Filter{AuthorID: "u9"})
	if len(byAuthor) != 0 {
		t.Fatalf("expected no articles of u9, got %d", len(byAuthor))
	}

	if _, err := f.engine.ListArticles(ctx, core.Filter{Status: "LOST"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("unknown status: expected ErrInvalidInput, got %v", err)
	}
}
