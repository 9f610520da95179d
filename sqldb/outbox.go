package sqldb

import (
	"context"
	"database/sql"
	"time"
)

// A Message is an encoded event which waits in the outbox for an external consumer, for example a mailer.
type Message struct {
	ID        int64
	Topic     string
	Payload   []byte // see notify.Format
	CreatedAt time.Time
}

// OutboxDB stores messages until they are marked as sent.
type OutboxDB struct {
	*sql.DB
	insert   *sql.Stmt
	markSent *sql.Stmt
	pending  *sql.Stmt
}

func NewOutboxDB(db *sql.DB) *OutboxDB {

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			id INTEGER PRIMARY KEY,
			topic varchar(64) NOT NULL,
			payload blob NOT NULL,
			created_at bigint NOT NULL,
			sent_at bigint NULL
		);`,
		`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (sent_at, id);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			panic(err)
		}
	}

	var outboxDB = &OutboxDB{}
	outboxDB.DB = db
	outboxDB.insert = mustPrepare(db, "INSERT INTO outbox (topic, payload, created_at) VALUES (?, ?, ?)")
	outboxDB.markSent = mustPrepare(db, "UPDATE outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL")
	outboxDB.pending = mustPrepare(db, "SELECT id, topic, payload, created_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?")
	return outboxDB
}

func (db *OutboxDB) Insert(ctx context.Context, topic string, payload []byte, at time.Time) error {
	_, err := db.insert.ExecContext(ctx, topic, payload, toUnix(at))
	return mapError(err)
}

// Pending returns the oldest unsent messages.
func (db *OutboxDB) Pending(ctx context.Context, limit int) ([]Message, error) {

	rows, err := db.pending.QueryContext(ctx, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var messages = []Message{}
	for rows.Next() {
		var m Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = fromUnix(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (db *OutboxDB) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := db.markSent.ExecContext(ctx, toUnix(at), id)
	return mapError(err)
}
