package memdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wansing/editorial/core"
)

func article(id string, status core.Status, updated time.Time) *core.Article {
	return &core.Article{
		ID:        id,
		Title:     "Title " + id,
		Content:   "Content",
		Status:    status,
		AuthorIDs: []string{"1"},
		Tags:      []string{"science"},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestCompareAndSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewArticleDB()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := db.InsertArticle(ctx, article("a", core.Draft, created)); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertArticle(ctx, article("a", core.Draft, created)); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate insert: expected ErrConflict, got %v", err)
	}

	updated, err := db.CompareAndSet(ctx, "a", core.Draft, func(a *core.Article) {
		a.Status = core.ResearchRequired
		a.ID = "b"
		a.CreatedAt = time.Time{}
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != "a" || !updated.CreatedAt.Equal(created) || updated.Status != core.ResearchRequired {
		t.Fatalf("unexpected article %+v", updated)
	}

	if _, err := db.CompareAndSet(ctx, "a", core.Draft, func(*core.Article) {}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("stale status: expected ErrConflict, got %v", err)
	}
	if _, err := db.CompareAndSet(ctx, "x", core.Draft, func(*core.Article) {}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing: expected ErrNotFound, got %v", err)
	}

	// returned articles are copies
	updated.Tags[0] = "changed"
	stored, _ := db.GetArticle(ctx, "a")
	if stored.Tags[0] != "science" {
		t.Fatalf("stored article was modified through a returned copy")
	}
}

func TestCompareAndSetPanic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewArticleDB()
	if err := db.InsertArticle(ctx, article("a", core.Draft, time.Now())); err != nil {
		t.Fatal(err)
	}
	func() {
		defer func() { _ = recover() }()
		db.CompareAndSet(ctx, "a", core.Draft, func(a *core.Article) {
			a.Status = core.Archived
			panic("boom")
		})
	}()
	stored, err := db.GetArticle(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != core.Draft {
		t.Fatalf("panicking mutation changed status to %s", stored.Status)
	}
}

func TestListArticles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewArticleDB()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		a := article(id, core.Draft, base.Add(time.Duration(i)*time.Hour))
		if id == "b" {
			a.Status = core.Published
			a.AuthorIDs = []string{"2"}
			a.Tags = []string{"politics"}
		}
		if err := db.InsertArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	var tests = []struct {
		filter core.Filter
		ids    []string
	}{
		{core.Filter{}, []string{"b", "a", "c"}},
		{core.Filter{Status: core.Draft}, []string{"a", "c"}},
		{core.Filter{AuthorID: "2"}, []string{"b"}},
		{core.Filter{Tag: "science"}, []string{"a", "c"}},
		{core.Filter{Limit: 1, Offset: 1}, []string{"a"}},
		{core.Filter{Offset: 5}, []string{}},
	}
	for _, tc := range tests {
		got, err := db.ListArticles(ctx, tc.filter)
		if err != nil {
			t.Fatal(err)
		}
		var ids = []string{}
		for _, a := range got {
			ids = append(ids, a.ID)
		}
		if len(ids) != len(tc.ids) {
			t.Fatalf("%+v: got %v, want %v", tc.filter, ids, tc.ids)
		}
		for i := range ids {
			if ids[i] != tc.ids[i] {
				t.Fatalf("%+v: got %v, want %v", tc.filter, ids, tc.ids)
			}
		}
	}
}

func TestMarkVerified(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewReferenceDB()
	if err := db.InsertReference(ctx, &core.Reference{ID: "r", Title: "Ref"}); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	ref, err := db.MarkVerified(ctx, "r", "7", at)
	if err != nil {
		t.Fatal(err)
	}
	if ref.VerifiedBy != "7" || !ref.VerifiedAt.Equal(at) {
		t.Fatalf("unexpected reference %+v", ref)
	}
	if _, err := db.MarkVerified(ctx, "r", "8", at); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("second verification: expected ErrConflict, got %v", err)
	}
	if _, err := db.MarkVerified(ctx, "x", "8", at); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing: expected ErrNotFound, got %v", err)
	}

	refs, err := db.GetReferences(ctx, []string{"r", "x"})
	if err != nil || len(refs) != 1 {
		t.Fatalf("expected one reference, got %v (%v)", refs, err)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewArticleDB().GetArticle(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := NewReferenceDB().GetReference(ctx, "r"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
