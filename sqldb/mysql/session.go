// Package mysql stores API sessions in a MySQL database.
package mysql

import (
	"database/sql"
	"strings"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/v2"
)

// NewSessionStore creates the sessions table if required. Expired sessions are deleted every cleanup interval.
func NewSessionStore(db *sql.DB, cleanup time.Duration) (scs.Store, error) {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			token CHAR(43) PRIMARY KEY,
			data BLOB NOT NULL,
			expiry TIMESTAMP(6) NOT NULL
		);`)
	if err != nil {
		return nil, err
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS
	if _, err := db.Exec(`CREATE INDEX sessions_expiry_idx ON sessions (expiry);`); err != nil && !strings.Contains(err.Error(), "Duplicate key name") {
		return nil, err
	}

	return mysqlstore.NewWithCleanupInterval(db, cleanup), nil
}
