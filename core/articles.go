package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ArticleDraft contains the fields which an author provides when creating an article.
type ArticleDraft struct {
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle,omitempty"`
	Content   string   `json:"content"`
	AuthorIDs []string `json:"authorIds"`
	Tags      []string `json:"tags"`
}

// ArticlePatch contains the fields to be changed. Nil fields remain unchanged.
type ArticlePatch struct {
	Title    *string  `json:"title,omitempty"`
	Subtitle *string  `json:"subtitle,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (p ArticlePatch) Empty() bool {
	return p.Title == nil && p.Subtitle == nil && p.Content == nil && p.Tags == nil
}

func (p ArticlePatch) validate() error {
	if p.Title != nil {
		if err := validateText("title", *p.Title, 1, MaxTitleLength); err != nil {
			return err
		}
	}
	if p.Subtitle != nil {
		if err := validateText("subtitle", *p.Subtitle, 0, MaxSubtitleLength); err != nil {
			return err
		}
	}
	if p.Content != nil {
		if err := validateText("content", *p.Content, 1, MaxContentLength); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		if _, err := NormalizeTags(p.Tags); err != nil {
			return err
		}
	}
	return nil
}

// changes returns whether applying the patch would modify the article.
func (p ArticlePatch) changes(a *Article) bool {
	var b = a.Clone()
	p.apply(b)
	if b.Title != a.Title || b.Subtitle != a.Subtitle || b.Content != a.Content || len(b.Tags) != len(a.Tags) {
		return true
	}
	for i := range b.Tags {
		if b.Tags[i] != a.Tags[i] {
			return true
		}
	}
	return false
}

// apply expects a validated patch.
func (p ArticlePatch) apply(a *Article) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Subtitle != nil {
		a.Subtitle = *p.Subtitle
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.Tags != nil {
		if tags, err := NormalizeTags(p.Tags); err == nil {
			a.Tags = tags
		}
	}
}

// CreateArticle stores a new draft. The actor must be an author or editor and must be among the authors.
func (e *Engine) CreateArticle(ctx context.Context, actor Actor, draft ArticleDraft) (*Article, error) {

	if !actor.Roles.Any(Author, Editor) {
		return nil, fmt.Errorf("%w: creating articles requires the author role", ErrForbidden)
	}

	if err := validateText("title", draft.Title, 1, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := validateText("subtitle", draft.Subtitle, 0, MaxSubtitleLength); err != nil {
		return nil, err
	}
	if err := validateText("content", draft.Content, 1, MaxContentLength); err != nil {
		return nil, err
	}
	if err := validateIDs("authorIds", draft.AuthorIDs, 1, MaxAuthors); err != nil {
		return nil, err
	}
	if !contains(draft.AuthorIDs, actor.ID) {
		return nil, fmt.Errorf("%w: the current user must be one of the authors", ErrForbidden)
	}
	tags, err := NormalizeTags(draft.Tags)
	if err != nil {
		return nil, err
	}

	var now = e.now()
	var article = &Article{
		ID:           e.NewID(),
		Title:        draft.Title,
		Subtitle:     draft.Subtitle,
		Content:      draft.Content,
		Status:       Draft,
		AuthorIDs:    cloneStrings(draft.AuthorIDs),
		ReferenceIDs: []string{},
		Tags:         tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = e.call(ctx, func(ctx context.Context) error {
		return e.Articles.InsertArticle(ctx, article)
	})
	if err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}

	e.Logger.Info("article created", "article", article.ID, "actor", actor.ID)
	return article.Clone(), nil
}

// UpdateArticle changes title, subtitle, content or tags. Authors can edit their articles in editable statuses,
// editors can edit every article which is neither published nor archived.
func (e *Engine) UpdateArticle(ctx context.Context, actor Actor, id string, patch ArticlePatch) (*Article, error) {

	if patch.Empty() {
		return nil, invalid("nothing to update")
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	article, err := e.getArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	var isAuthor = article.HasAuthor(actor.ID)
	switch {
	case !isAuthor && !actor.IsEditor():
		return nil, fmt.Errorf("%w: only authors and editors can update articles", ErrForbidden)
	case article.Status.Terminal():
		return nil, fmt.Errorf("%w: %s articles can't be edited", ErrInvalidTransition, strings.ToLower(string(article.Status)))
	case !article.Status.Editable() && !actor.IsEditor():
		return nil, fmt.Errorf("%w: articles in %s status can only be edited by editors", ErrForbidden, article.Status)
	}

	var now = e.now()
	updated, err := e.compareAndSet(ctx, article.ID, article.Status, func(stored *Article) {
		patch.apply(stored)
		stored.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}

	e.Logger.Info("article updated", "article", updated.ID, "actor", actor.ID)
	return updated, nil
}

func (e *Engine) GetArticle(ctx context.Context, id string) (*Article, error) {
	return e.getArticle(ctx, id)
}

func (e *Engine) ListArticles(ctx context.Context, filter Filter) ([]*Article, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("unknown status %q", filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Tag != "" {
		filter.Tag = FoldTag(filter.Tag)
	}
	var articles []*Article
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		articles, err = e.Articles.ListArticles(ctx, filter)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return []*Article{}, nil
	}
	return articles, err
}
