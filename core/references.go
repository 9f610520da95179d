package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ReferenceDraft struct {
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	Authors       []string      `json:"authors"`
	PublishedDate string        `json:"publishedDate,omitempty"`
	Publisher     string        `json:"publisher,omitempty"`
	Description   string        `json:"description"`
	Type          ReferenceType `json:"type"`
}

// CreateReference stores a new, unverified reference. Every authenticated user can create references.
func (e *Engine) CreateReference(ctx context.Context, actor Actor, draft ReferenceDraft) (*Reference, error) {

	if actor.ID == "" {
		return nil, ErrUnauthorized
	}

	var authors = []string{}
	for _, author := range draft.Authors {
		if author = strings.TrimSpace(author); author != "" {
			authors = append(authors, author)
		}
	}

	switch {
	case len(authors) == 0:
		return nil, invalid("at least one author is required")
	case !draft.Type.Valid():
		return nil, invalid("reference type must be one of %s, %s, %s, %s", Academic, Government, News, Other)
	}
	if err := validateText("title", draft.Title, 1, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := validateURL("url", draft.URL); err != nil {
		return nil, err
	}
	if err := validateText("publisher", draft.Publisher, 0, MaxPublisherLength); err != nil {
		return nil, err
	}
	if err := validateText("description", draft.Description, 1, MaxDescriptionLength); err != nil {
		return nil, err
	}

	var now = e.now()
	var ref = &Reference{
		ID:            e.NewID(),
		Title:         draft.Title,
		URL:           draft.URL,
		Authors:       authors,
		PublishedDate: draft.PublishedDate,
		Publisher:     draft.Publisher,
		Description:   draft.Description,
		Type:          draft.Type,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := e.call(ctx, func(ctx context.Context) error {
		return e.References.InsertReference(ctx, ref)
	})
	if err != nil {
		return nil, fmt.Errorf("insert reference: %w", err)
	}

	e.Logger.Info("reference created", "reference", ref.ID, "actor", actor.ID)
	return ref.Clone(), nil
}

// VerifyReference marks a reference as verified. Verification happens once and can't be undone.
func (e *Engine) VerifyReference(ctx context.Context, actor Actor, id string) (*Reference, error) {

	if !actor.Roles.Any(Researcher, Editor) {
		return nil, fmt.Errorf("%w: verifying references requires the researcher or editor role", ErrForbidden)
	}

	var ref *Reference
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		ref, err = e.References.MarkVerified(ctx, id, actor.ID, e.now())
		return err
	})
	if errors.Is(err, ErrConflict) {
		return nil, precondition(AlreadyVerified, "reference %s is verified already", id)
	}
	if err != nil {
		return nil, fmt.Errorf("verify reference %s: %w", id, err)
	}

	e.Logger.Info("reference verified", "reference", ref.ID, "actor", actor.ID)
	return ref, nil
}

func (e *Engine) GetReference(ctx context.Context, id string) (*Reference, error) {
	var ref *Reference
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		ref, err = e.References.GetReference(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get reference %s: %w", id, err)
	}
	return ref, nil
}
