package core

import (
	"errors"
	"strconv"
)

type DBUser interface {
	ID() int
	Name() string // e-mail address
}

type UserDB interface {
	ChangePassword(u DBUser, old, new string) error
	Delete(u DBUser) error
	GetUser(id int) (DBUser, error)
	GetUserByName(name string) (DBUser, error)
	GetAllUsers(limit, offset int) ([]DBUser, error)
	InsertUser(name string) (DBUser, error)
	LoginUser(name, password string) (DBUser, error)
	SetPassword(u DBUser, password string) error
}

var (
	ErrAuth          = errors.New("authentication failed")
	ErrEmptyPassword = errors.New("refusing to set empty password")
)

// SetPassword shadows UserDB.SetPassword.
func (a *AuthDB) SetPassword(u DBUser, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return a.UserDB.SetPassword(u, password)
}

// UserID converts a database user id into the id which is stored in articles.
func UserID(u DBUser) string {
	return strconv.Itoa(u.ID())
}

// ParseUserID is the inverse of UserID.
func ParseUserID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}
