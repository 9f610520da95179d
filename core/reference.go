package core

import (
	"context"
	"fmt"
	"time"
)

type ReferenceType string

const (
	Academic   ReferenceType = "ACADEMIC"
	Government ReferenceType = "GOVERNMENT"
	News       ReferenceType = "NEWS"
	Other      ReferenceType = "OTHER"
)

func (t ReferenceType) Valid() bool {
	switch t {
	case Academic, Government, News, Other:
		return true
	default:
		return false
	}
}

// A Reference is a source which supports an article. Its verification is set at most once and never cleared.
type Reference struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	Authors       []string      `json:"authors"`
	PublishedDate string        `json:"publishedDate,omitempty"`
	Publisher     string        `json:"publisher,omitempty"`
	Description   string        `json:"description"`
	Type          ReferenceType `json:"type"`
	VerifiedBy    string        `json:"verifiedBy,omitempty"`
	VerifiedAt    *time.Time    `json:"verifiedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (r *Reference) Clone() *Reference {
	if r == nil {
		return nil
	}
	var c = *r
	c.Authors = cloneStrings(r.Authors)
	c.VerifiedAt = cloneTime(r.VerifiedAt)
	return &c
}

func (r *Reference) Verified() bool {
	return r.VerifiedBy != ""
}

// ReferenceDB stores references.
type ReferenceDB interface {
	GetReference(ctx context.Context, id string) (*Reference, error)
	// GetReferences returns the references with the given ids which exist, in no particular order.
	GetReferences(ctx context.Context, ids []string) ([]*Reference, error)
	InsertReference(ctx context.Context, r *Reference) error
	// MarkVerified sets VerifiedBy and VerifiedAt if they are unset. It returns ErrConflict if the reference is verified already.
	MarkVerified(ctx context.Context, id string, by string, at time.Time) (*Reference, error)
}

// ValidateReferences checks cardinality and uniqueness of reference ids.
// It does not check whether the references exist.
func ValidateReferences(ids []string, min int) error {
	var seen = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return precondition(InsufficientReferences, "empty reference id")
		}
		if _, ok := seen[id]; ok {
			return precondition(InsufficientReferences, "duplicate reference %s", id)
		}
		seen[id] = struct{}{}
	}
	if len(ids) < min {
		return precondition(InsufficientReferences, "at least %d references are required, got %d", min, len(ids))
	}
	return nil
}

// resolveReferences returns an error if any of the ids does not resolve to a stored reference.
// If requireVerified is true, every reference must be verified as well.
func resolveReferences(ctx context.Context, db ReferenceDB, ids []string, requireVerified bool) error {
	if len(ids) == 0 {
		return nil
	}
	refs, err := db.GetReferences(ctx, ids)
	if err != nil {
		return unavailable(err)
	}
	var byID = make(map[string]*Reference, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}
	var missing, unverified []string
	for _, id := range ids {
		ref, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case requireVerified && !ref.Verified():
			unverified = append(unverified, id)
		}
	}
	if len(missing) > 0 {
		return precondition(UnknownReferences, "%v", missing)
	}
	if len(unverified) > 0 {
		return precondition(UnverifiedReferences, "%v", unverified)
	}
	return nil
}

// String is used in log lines.
func (r *Reference) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.Title)
}
