package core

import "strings"

type Role string

const (
	Author     Role = "AUTHOR"
	Researcher Role = "RESEARCHER"
	Reviewer   Role = "REVIEWER"
	Editor     Role = "EDITOR"
)

var AllRoles = []Role{Author, Researcher, Reviewer, Editor}

// ParseRole matches a role case-insensitively. It is used to map group names to roles.
func ParseRole(s string) (Role, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, role := range AllRoles {
		if string(role) == s {
			return role, true
		}
	}
	return "", false
}

// Roles is a set of roles.
type Roles map[Role]struct{}

func NewRoles(roles ...Role) Roles {
	var set = make(Roles, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

func (r Roles) Has(role Role) bool {
	_, ok := r[role]
	return ok
}

// Any returns true if at least one of the given roles is in the set.
func (r Roles) Any(roles ...Role) bool {
	for _, role := range roles {
		if r.Has(role) {
			return true
		}
	}
	return false
}

// Slice returns the roles in the order of AllRoles.
func (r Roles) Slice() []Role {
	var result = []Role{}
	for _, role := range AllRoles {
		if r.Has(role) {
			result = append(result, role)
		}
	}
	return result
}

// An Actor is an authenticated principal.
type Actor struct {
	ID    string
	Email string // optional
	Roles Roles
}

func (a Actor) Is(role Role) bool {
	return a.Roles.Has(role)
}

func (a Actor) IsEditor() bool {
	return a.Roles.Has(Editor)
}
