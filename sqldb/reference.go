package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/wansing/editorial/core"
)

var referenceColumns = []string{
	"id", "title", "url", "authors", "published_date", "publisher", "description", "type",
	"verified_by", "verified_at", "created_at", "updated_at",
}

type ReferenceDB struct {
	*sql.DB
	get    *sql.Stmt
	verify *sql.Stmt
}

func NewReferenceDB(db *sql.DB) *ReferenceDB {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reference (
			id varchar(36) PRIMARY KEY,
			title varchar(255) NOT NULL,
			url text NOT NULL,
			authors text NOT NULL,
			published_date varchar(32) NOT NULL DEFAULT '',
			publisher varchar(128) NOT NULL DEFAULT '',
			description text NOT NULL,
			type varchar(16) NOT NULL,
			verified_by varchar(64) NOT NULL DEFAULT '',
			verified_at bigint NULL,
			created_at bigint NOT NULL,
			updated_at bigint NOT NULL
		);`)
	if err != nil {
		panic(err)
	}

	var referenceDB = &ReferenceDB{}
	referenceDB.DB = db
	referenceDB.get = mustPrepare(db, "SELECT "+strings.Join(referenceColumns, ", ")+" FROM reference WHERE id = ?")
	referenceDB.verify = mustPrepare(db, "UPDATE reference SET verified_by = ?, verified_at = ?, updated_at = ? WHERE id = ? AND verified_by = ''")
	return referenceDB
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReference(row scanner) (*core.Reference, error) {
	var r = &core.Reference{}
	var authors, refType string
	var verifiedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&r.ID, &r.Title, &r.URL, &authors, &r.PublishedDate, &r.Publisher, &r.Description, &refType, &r.VerifiedBy, &verifiedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &r.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors of reference %s: %w", r.ID, err)
	}
	r.Type = core.ReferenceType(refType)
	r.VerifiedAt = fromNullUnix(verifiedAt)
	r.CreatedAt = fromUnix(createdAt)
	r.UpdatedAt = fromUnix(updatedAt)
	return r, nil
}

func (db *ReferenceDB) GetReference(ctx context.Context, id string) (*core.Reference, error) {
	r, err := scanReference(db.get.QueryRowContext(ctx, id))
	return r, mapError(err)
}

func (db *ReferenceDB) GetReferences(ctx context.Context, ids []string) ([]*core.Reference, error) {

	var refs = []*core.Reference{}
	if len(ids) == 0 {
		return refs, nil
	}

	query, args, err := sq.Select(referenceColumns...).From("reference").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, mapError(err)
		}
		refs = append(refs, r)
	}
	return refs, mapError(rows.Err())
}

func (db *ReferenceDB) InsertReference(ctx context.Context, r *core.Reference) error {
	authors, err := json.Marshal(r.Authors)
	if err != nil {
		return err
	}
	query, args, err := sq.Insert("reference").SetMap(map[string]interface{}{
		"id":             r.ID,
		"title":          r.Title,
		"url":            r.URL,
		"authors":        string(authors), // JSON array
		"published_date": r.PublishedDate,
		"publisher":      r.Publisher,
		"description":    r.Description,
		"type":           string(r.Type),
		"verified_by":    r.VerifiedBy,
		"verified_at":    toNullUnix(r.VerifiedAt),
		"created_at":     toUnix(r.CreatedAt),
		"updated_at":     toUnix(r.UpdatedAt),
	}).ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return mapError(err)
}

// MarkVerified is a single conditional UPDATE, so concurrent verifications can't both succeed.
func (db *ReferenceDB) MarkVerified(ctx context.Context, id string, by string, at time.Time) (*core.Reference, error) {

	result, err := db.verify.ExecContext(ctx, by, toUnix(at), toUnix(at), id)
	if err != nil {
		return nil, mapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// either missing or verified already
		if _, err := db.GetReference(ctx, id); err != nil {
			return nil, err
		}
		return nil, core.ErrConflict
	}

	return db.GetReference(ctx, id)
}
