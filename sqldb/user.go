package sqldb

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/wansing/editorial/core"
	"golang.org/x/crypto/bcrypt"
)

var ErrAuth = core.ErrAuth

// clean normalizes an e-mail address.
func clean(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	return name
}

type user struct {
	id   int
	name string
	pass []byte // bcrypt hash, empty if no password has been set
}

func (u *user) ID() int {
	return u.id
}

func (u *user) Name() string {
	return u.name
}

type UserDB struct {
	*sql.DB
	delete      *sql.Stmt
	getAll      *sql.Stmt
	get         *sql.Stmt
	getByName   *sql.Stmt
	insert      *sql.Stmt
	setPassword *sql.Stmt
}

func NewUserDB(db *sql.DB) *UserDB {

	_, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS usr (
			id INTEGER PRIMARY KEY,
			mail varchar(128) NOT NULL,
			password varchar(64) NOT NULL DEFAULT '',
			UNIQUE(mail)
		);`)
	if err != nil {
		panic(err)
	}

	var userDB = &UserDB{}
	userDB.DB = db
	userDB.delete = mustPrepare(db, "DELETE FROM usr WHERE id = ?")
	userDB.get = mustPrepare(db, "SELECT id, mail, password FROM usr WHERE id = ? LIMIT 1")
	userDB.getAll = mustPrepare(db, "SELECT id, mail FROM usr ORDER BY mail LIMIT ? OFFSET ?")
	userDB.getByName = mustPrepare(db, "SELECT id, mail, password FROM usr WHERE mail = ? LIMIT 1")
	userDB.insert = mustPrepare(db, "INSERT INTO usr (mail) VALUES (?)") // no bcrypt hash equals the empty string
	userDB.setPassword = mustPrepare(db, "UPDATE usr SET password = ? WHERE id = ?")
	return userDB
}

func (db *UserDB) ChangePassword(u core.DBUser, old, new string) error {
	stored, err := db.getUser(db.get, u.ID())
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(stored.pass, []byte(old)) != nil {
		return ErrAuth
	}
	return db.SetPassword(u, new)
}

func (db *UserDB) Delete(u core.DBUser) error {
	_, err := db.delete.Exec(u.ID())
	return err
}

func (db *UserDB) getUser(stmt *sql.Stmt, arg interface{}) (*user, error) {
	var u = &user{}
	var pass string
	err := stmt.QueryRow(arg).Scan(&u.id, &u.name, &pass)
	if err != nil {
		return nil, mapError(err)
	}
	u.pass = []byte(pass)
	return u, nil
}

func (db *UserDB) GetUser(id int) (core.DBUser, error) {
	return db.getUser(db.get, id)
}

func (db *UserDB) GetUserByName(name string) (core.DBUser, error) {
	return db.getUser(db.getByName, clean(name))
}

func (db *UserDB) GetAllUsers(limit, offset int) ([]core.DBUser, error) {

	var all = []core.DBUser{}

	rows, err := db.getAll.Query(limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u = &user{}
		err = rows.Scan(&u.id, &u.name)
		if err != nil {
			return nil, err
		}
		all = append(all, u)
	}

	return all, rows.Err()
}

func (db *UserDB) InsertUser(name string) (core.DBUser, error) {
	name = clean(name)
	if name == "" {
		return nil, errors.New("empty user name")
	}
	result, err := db.insert.Exec(name)
	if err != nil {
		return nil, mapError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &user{
		id:   int(id),
		name: name,
	}, nil
}

func (db *UserDB) LoginUser(name, password string) (core.DBUser, error) {

	u, err := db.getUser(db.getByName, clean(name))
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrAuth // user not found
	}
	if err != nil {
		return nil, err
	}

	if len(u.pass) == 0 || bcrypt.CompareHashAndPassword(u.pass, []byte(password)) != nil {
		return nil, ErrAuth // wrong password
	}

	return u, nil
}

func (db *UserDB) SetPassword(u core.DBUser, password string) error {

	if password == "" {
		return core.ErrEmptyPassword
	}

	if u.ID() == 0 {
		return errors.New("can't set password of user 0")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.setPassword.Exec(string(hash), u.ID())
	if err != nil {
		return err
	}

	if u, ok := u.(*user); ok {
		u.pass = hash
	}
	return nil
}
