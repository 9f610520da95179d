package core

import (
	"context"
	"time"
)

// Article is the persisted representation of an article. Empty strings and nil pointers represent absent optional fields.
type Article struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Subtitle            string     `json:"subtitle,omitempty"`
	Content             string     `json:"content"`
	Status              Status     `json:"status"`
	AuthorIDs           []string   `json:"authorIds"`
	ReferenceIDs        []string   `json:"referenceIds"`
	Tags                []string   `json:"tags"`
	CurrentResearcherID string     `json:"currentResearcherId,omitempty"`
	CurrentReviewerID   string     `json:"currentReviewerId,omitempty"`
	ResearchNotes       string     `json:"researchNotes,omitempty"`
	ReviewNotes         string     `json:"reviewNotes,omitempty"`
	SubmissionNotes     string     `json:"submissionNotes,omitempty"`
	ApprovedBy          string     `json:"approvedBy,omitempty"`
	ApprovedAt          *time.Time `json:"approvedAt,omitempty"`
	PublishedAt         *time.Time `json:"publishedAt,omitempty"`
	ResearchCompletedAt *time.Time `json:"researchCompletedAt,omitempty"`
	ReviewedAt          *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy, so stores can hand out articles without sharing slices.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	var c = *a
	c.AuthorIDs = cloneStrings(a.AuthorIDs)
	c.ReferenceIDs = cloneStrings(a.ReferenceIDs)
	c.Tags = cloneStrings(a.Tags)
	c.ApprovedAt = cloneTime(a.ApprovedAt)
	c.PublishedAt = cloneTime(a.PublishedAt)
	c.ResearchCompletedAt = cloneTime(a.ResearchCompletedAt)
	c.ReviewedAt = cloneTime(a.ReviewedAt)
	return &c
}

func (a *Article) HasAuthor(userID string) bool {
	return contains(a.AuthorIDs, userID)
}

// PrimaryAuthor returns the first author, who receives the notifications.
func (a *Article) PrimaryAuthor() string {
	if len(a.AuthorIDs) == 0 {
		return ""
	}
	return a.AuthorIDs[0]
}

// A Mutation changes an article in place. It is applied by ArticleDB.CompareAndSet to a fresh copy of the stored article.
type Mutation func(a *Article)

// Filter restricts ListArticles. Zero values don't restrict.
type Filter struct {
	Status   Status
	AuthorID string
	Tag      string
	Limit    int
	Offset   int
}

// ArticleDB stores articles. It is the single writer of record.
//
// CompareAndSet must be atomic: it applies the mutation only if the stored status equals expected, else it returns ErrConflict.
// It returns ErrNotFound if no article with the id exists. The mutation must not be able to change ID and CreatedAt.
type ArticleDB interface {
	CompareAndSet(ctx context.Context, id string, expected Status, mutate Mutation) (*Article, error)
	GetArticle(ctx context.Context, id string) (*Article, error)
	InsertArticle(ctx context.Context, a *Article) error // ErrConflict if the id exists
	ListArticles(ctx context.Context, filter Filter) ([]*Article, error)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	var c = make([]string, len(s))
	copy(c, s)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	var c = *t
	return &c
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
