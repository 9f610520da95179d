package core

import (
	"errors"
	"fmt"
	"strings"
)

// AuthDB resolves users to actors. A user holds every role whose name equals the name of one of their groups.
type AuthDB struct {
	GroupDB
	UserDB
}

// Actor returns the actor of a logged-in user. If u is nil, it returns ErrUnauthorized.
func (a *AuthDB) Actor(u DBUser) (Actor, error) {
	if u == nil {
		return Actor{}, ErrUnauthorized
	}
	groups, err := a.GroupDB.GetGroupsOf(u)
	if err != nil {
		return Actor{}, fmt.Errorf("getting groups of user %d: %w", u.ID(), err)
	}
	var roles = NewRoles()
	for _, group := range groups {
		if role, ok := ParseRole(group.Name()); ok {
			roles[role] = struct{}{}
		}
	}
	return Actor{
		ID:    UserID(u),
		Email: u.Name(),
		Roles: roles,
	}, nil
}

// ActorByID looks up the user with the given database id and calls Actor.
func (a *AuthDB) ActorByID(id int) (Actor, error) {
	if id == 0 {
		return Actor{}, ErrUnauthorized
	}
	u, err := a.UserDB.GetUser(id)
	if errors.Is(err, ErrNotFound) {
		return Actor{}, ErrUnauthorized // user has been deleted
	}
	if err != nil {
		return Actor{}, fmt.Errorf("getting user %d: %w", id, err)
	}
	return a.Actor(u)
}

// Email returns the e-mail address of the user with the given article user id.
func (a *AuthDB) Email(userID string) (string, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return "", err
	}
	u, err := a.UserDB.GetUser(id)
	if err != nil {
		return "", err
	}
	return u.Name(), nil
}

func roleGroupName(role Role) string {
	return strings.ToLower(string(role))
}

// RoleGroup returns the group which represents the given role. It creates the group if it does not exist.
func (a *AuthDB) RoleGroup(role Role) (DBGroup, error) {
	var name = roleGroupName(role)
	group, err := a.GroupDB.GetGroupByName(name)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := a.GroupDB.InsertGroup(name); err != nil {
		return nil, err
	}
	return a.GroupDB.GetGroupByName(name)
}

// Grant adds the user to the group of the role.
func (a *AuthDB) Grant(u DBUser, role Role) error {
	group, err := a.RoleGroup(role)
	if err != nil {
		return err
	}
	is, err := group.HasMember(u)
	if err != nil || is {
		return err
	}
	return a.GroupDB.Join(group, u)
}

// Revoke removes the user from the group of the role.
func (a *AuthDB) Revoke(u DBUser, role Role) error {
	group, err := a.GroupDB.GetGroupByName(roleGroupName(role))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return a.GroupDB.Leave(group, u)
}
