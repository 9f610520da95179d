package core

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Length bounds in runes, and cardinality bounds.
const (
	MaxTitleLength       = 200
	MaxSubtitleLength    = 500
	MaxContentLength     = 50000
	MaxNotesLength       = 1000
	MaxAuthors           = 5
	MaxTags              = 10
	MaxPublisherLength   = 100
	MaxDescriptionLength = 1000
)

func validateText(field, value string, min, max int) error {
	var n = utf8.RuneCountInString(value)
	if n < min {
		if min == 1 {
			return invalid("%s is required", field)
		}
		return invalid("%s must be at least %d characters", field, min)
	}
	if n > max {
		return invalid("%s must not exceed %d characters", field, max)
	}
	return nil
}

// validateIDs checks that a list of ids has between min and max unique non-empty members.
func validateIDs(field string, ids []string, min, max int) error {
	if len(ids) < min {
		return invalid("%s must have at least %d items", field, min)
	}
	if len(ids) > max {
		return invalid("%s must not exceed %d items", field, max)
	}
	var seen = make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return invalid("%s[%d] is empty", field, i)
		}
		if _, ok := seen[id]; ok {
			return invalid("%s[%d] is a duplicate", field, i)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// FoldTag returns the canonical form of a tag. A Caser is stateful, so a new one is used per call.
func FoldTag(tag string) string {
	return cases.Fold().String(strings.TrimSpace(tag))
}

// NormalizeTags folds case, trims spaces, drops empty and duplicate tags, and checks the bounds.
func NormalizeTags(tags []string) ([]string, error) {
	var result = []string{}
	var seen = make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = FoldTag(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	if len(result) < 1 {
		return nil, invalid("tags must have at least 1 item")
	}
	if len(result) > MaxTags {
		return nil, invalid("tags must not exceed %d items", MaxTags)
	}
	return result, nil
}

func validateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("%s must be a valid URL", field)
	}
	return nil
}

// union returns a followed by the members of b which are not in a.
func union(a, b []string) []string {
	var result = cloneStrings(a)
	for _, s := range b {
		if !contains(result, s) {
			result = append(result, s)
		}
	}
	return result
}
