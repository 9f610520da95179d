// Package memdb stores articles and references in memory. It is used by tests and by ephemeral runs without a database.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wansing/editorial/core"
)

type ArticleDB struct {
	mu       sync.Mutex
	articles map[string]*core.Article
}

func NewArticleDB() *ArticleDB {
	return &ArticleDB{
		articles: make(map[string]*core.Article),
	}
}

// CompareAndSet applies the mutation to a copy, so a panicking mutation leaves the stored article unchanged.
func (db *ArticleDB) CompareAndSet(ctx context.Context, id string, expected core.Status, mutate core.Mutation) (*core.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.articles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if stored.Status != expected {
		return nil, core.ErrConflict
	}

	var updated = stored.Clone()
	mutate(updated)
	updated.ID = stored.ID
	updated.CreatedAt = stored.CreatedAt

	db.articles[id] = updated
	return updated.Clone(), nil
}

func (db *ArticleDB) GetArticle(ctx context.Context, id string) (*core.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.articles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return a.Clone(), nil
}

func (db *ArticleDB) InsertArticle(ctx context.Context, a *core.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.articles[a.ID]; ok {
		return core.ErrConflict
	}
	db.articles[a.ID] = a.Clone()
	return nil
}

// ListArticles returns the matching articles, most recently updated first.
func (db *ArticleDB) ListArticles(ctx context.Context, filter core.Filter) ([]*core.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	var matching = []*core.Article{}
	for _, a := range db.articles {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.AuthorID != "" && !a.HasAuthor(filter.AuthorID) {
			continue
		}
		if filter.Tag != "" && !hasTag(a, filter.Tag) {
			continue
		}
		matching = append(matching, a.Clone())
	}
	db.mu.Unlock()

	sort.Slice(matching, func(i, j int) bool {
		if matching[i].UpdatedAt.Equal(matching[j].UpdatedAt) {
			return matching[i].ID < matching[j].ID
		}
		return matching[i].UpdatedAt.After(matching[j].UpdatedAt)
	})

	if filter.Offset >= len(matching) {
		return []*core.Article{}, nil
	}
	matching = matching[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matching) {
		matching = matching[:filter.Limit]
	}
	return matching, nil
}

func hasTag(a *core.Article, tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type ReferenceDB struct {
	mu         sync.RWMutex
	references map[string]*core.Reference
}

func NewReferenceDB() *ReferenceDB {
	return &ReferenceDB{
		references: make(map[string]*core.Reference),
	}
}

func (db *ReferenceDB) GetReference(ctx context.Context, id string) (*core.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	r, ok := db.references[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return r.Clone(), nil
}

func (db *ReferenceDB) GetReferences(ctx context.Context, ids []string) ([]*core.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	var refs = []*core.Reference{}
	for _, id := range ids {
		if r, ok := db.references[id]; ok {
			refs = append(refs, r.Clone())
		}
	}
	return refs, nil
}

func (db *ReferenceDB) InsertReference(ctx context.Context, r *core.Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.references[r.ID]; ok {
		return core.ErrConflict
	}
	db.references[r.ID] = r.Clone()
	return nil
}

func (db *ReferenceDB) MarkVerified(ctx context.Context, id string, by string, at time.Time) (*core.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.references[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if r.Verified() {
		return nil, core.ErrConflict
	}
	r.VerifiedBy = by
	r.VerifiedAt = &at
	r.UpdatedAt = at
	return r.Clone(), nil
}
