// Package sqlite3 stores API sessions in an SQLite database.
package sqlite3

import (
	"database/sql"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// NewSessionStore creates the sessions table if required. Expired sessions are deleted every cleanup interval.
func NewSessionStore(db *sql.DB, cleanup time.Duration) (scs.Store, error) {

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expiry REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, err
		}
	}

	return sqlite3store.NewWithCleanupInterval(db, cleanup), nil
}
