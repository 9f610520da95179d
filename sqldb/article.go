package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/wansing/editorial/core"
)

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var articleColumns = []string{
	"id", "title", "subtitle", "content", "status",
	"researcher", "reviewer", "research_notes", "review_notes", "submission_notes",
	"approved_by", "approved_at", "published_at", "research_completed_at", "reviewed_at",
	"created_at", "updated_at",
}

// ArticleDB stores articles in the table "article". Authors, tags and references are stored in their own tables.
type ArticleDB struct {
	*sql.DB
}

func NewArticleDB(db *sql.DB) *ArticleDB {

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS article (
			id varchar(36) PRIMARY KEY,
			title varchar(255) NOT NULL,
			subtitle text NOT NULL,
			content mediumtext NOT NULL,
			status varchar(32) NOT NULL,
			researcher varchar(64) NOT NULL DEFAULT '',
			reviewer varchar(64) NOT NULL DEFAULT '',
			research_notes text NOT NULL,
			review_notes text NOT NULL,
			submission_notes text NOT NULL,
			approved_by varchar(64) NOT NULL DEFAULT '',
			approved_at bigint NULL,
			published_at bigint NULL,
			research_completed_at bigint NULL,
			reviewed_at bigint NULL,
			created_at bigint NOT NULL,
			updated_at bigint NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS article_status_idx ON article (status, updated_at);`,
		`CREATE TABLE IF NOT EXISTS article_author (
			article varchar(36) NOT NULL,
			position int(11) NOT NULL,
			usr varchar(64) NOT NULL,
			PRIMARY KEY (article, position)
		);`,
		`CREATE TABLE IF NOT EXISTS article_tag (
			article varchar(36) NOT NULL,
			tag varchar(255) NOT NULL,
			position int(11) NOT NULL,
			PRIMARY KEY (article, tag)
		);`,
		`CREATE TABLE IF NOT EXISTS article_reference (
			article varchar(36) NOT NULL,
			reference varchar(36) NOT NULL,
			position int(11) NOT NULL,
			PRIMARY KEY (article, reference)
		);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			panic(err)
		}
	}

	return &ArticleDB{db}
}

func (db *ArticleDB) GetArticle(ctx context.Context, id string) (*core.Article, error) {
	a, err := loadArticle(ctx, db.DB, id)
	return a, mapError(err)
}

func (db *ArticleDB) InsertArticle(ctx context.Context, a *core.Article) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}

	query, args, err := sq.Insert("article").SetMap(articleValues(a)).ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return mapError(err)
	}

	if err = storeLists(ctx, tx, a); err != nil {
		tx.Rollback()
		return mapError(err)
	}

	return mapError(tx.Commit())
}

// CompareAndSet reads, mutates and writes the article in one transaction. The UPDATE is conditional on the status too.
func (db *ArticleDB) CompareAndSet(ctx context.Context, id string, expected core.Status, mutate core.Mutation) (*core.Article, error) {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err)
	}

	stored, err := loadArticle(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return nil, mapError(err)
	}
	if stored.Status != expected {
		tx.Rollback()
		return nil, core.ErrConflict
	}

	var updated = stored.Clone()
	mutate(updated)
	updated.ID = stored.ID
	updated.CreatedAt = stored.CreatedAt

	var values = articleValues(updated)
	delete(values, "id")
	delete(values, "created_at")

	query, args, err := sq.Update("article").
		SetMap(values).
		Where(sq.Eq{"id": id, "status": string(expected)}).
		ToSql()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback()
		return nil, mapError(err)
	}
	if n, err := result.RowsAffected(); err != nil || n != 1 {
		tx.Rollback()
		return nil, core.ErrConflict
	}

	if err = clearLists(ctx, tx, id); err != nil {
		tx.Rollback()
		return nil, mapError(err)
	}
	if err = storeLists(ctx, tx, updated); err != nil {
		tx.Rollback()
		return nil, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return updated, nil
}

// ListArticles returns the matching articles, most recently updated first.
func (db *ArticleDB) ListArticles(ctx context.Context, filter core.Filter) ([]*core.Article, error) {

	var query = sq.Select("a.id").From("article a").OrderBy("a.updated_at DESC", "a.id")
	if filter.Status != "" {
		query = query.Where(sq.Eq{"a.status": string(filter.Status)})
	}
	if filter.AuthorID != "" {
		query = query.Where("EXISTS (SELECT 1 FROM article_author aa WHERE aa.article = a.id AND aa.usr = ?)", filter.AuthorID)
	}
	if filter.Tag != "" {
		query = query.Where("EXISTS (SELECT 1 FROM article_tag t WHERE t.article = a.id AND t.tag = ?)", filter.Tag)
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	ids, err := queryStrings(ctx, db.DB, sqlQuery, args...)
	if err != nil {
		return nil, mapError(err)
	}

	var articles = make([]*core.Article, 0, len(ids))
	for _, id := range ids {
		a, err := loadArticle(ctx, db.DB, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue // deleted meanwhile
		}
		if err != nil {
			return nil, mapError(err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func articleValues(a *core.Article) map[string]interface{} {
	return map[string]interface{}{
		"id":                    a.ID,
		"title":                 a.Title,
		"subtitle":              a.Subtitle,
		"content":               a.Content,
		"status":                string(a.Status),
		"researcher":            a.CurrentResearcherID,
		"reviewer":              a.CurrentReviewerID,
		"research_notes":        a.ResearchNotes,
		"review_notes":          a.ReviewNotes,
		"submission_notes":      a.SubmissionNotes,
		"approved_by":           a.ApprovedBy,
		"approved_at":           toNullUnix(a.ApprovedAt),
		"published_at":          toNullUnix(a.PublishedAt),
		"research_completed_at": toNullUnix(a.ResearchCompletedAt),
		"reviewed_at":           toNullUnix(a.ReviewedAt),
		"created_at":            toUnix(a.CreatedAt),
		"updated_at":            toUnix(a.UpdatedAt),
	}
}

// loadArticle returns sql.ErrNoRows if the article does not exist.
func loadArticle(ctx context.Context, q querier, id string) (*core.Article, error) {

	query, args, err := sq.Select(articleColumns...).From("article").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var a = &core.Article{}
	var status string
	var approvedAt, publishedAt, researchCompletedAt, reviewedAt sql.NullInt64
	var createdAt, updatedAt int64

	err = q.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Title, &a.Subtitle, &a.Content, &status,
		&a.CurrentResearcherID, &a.CurrentReviewerID, &a.ResearchNotes, &a.ReviewNotes, &a.SubmissionNotes,
		&a.ApprovedBy, &approvedAt, &publishedAt, &researchCompletedAt, &reviewedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = core.Status(status)
	a.ApprovedAt = fromNullUnix(approvedAt)
	a.PublishedAt = fromNullUnix(publishedAt)
	a.ResearchCompletedAt = fromNullUnix(researchCompletedAt)
	a.ReviewedAt = fromNullUnix(reviewedAt)
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)

	if a.AuthorIDs, err = queryStrings(ctx, q, "SELECT usr FROM article_author WHERE article = ? ORDER BY position", id); err != nil {
		return nil, err
	}
	if a.Tags, err = queryStrings(ctx, q, "SELECT tag FROM article_tag WHERE article = ? ORDER BY position", id); err != nil {
		return nil, err
	}
	if a.ReferenceIDs, err = queryStrings(ctx, q, "SELECT reference FROM article_reference WHERE article = ? ORDER BY position", id); err != nil {
		return nil, err
	}

	return a, nil
}

func queryStrings(ctx context.Context, q querier, query string, args ...interface{}) ([]string, error) {

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result = []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func clearLists(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"article_author", "article_tag", "article_reference"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE article = ?", id); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

func storeLists(ctx context.Context, tx *sql.Tx, a *core.Article) error {
	var lists = []struct {
		table  string
		column string
		values []string
	}{
		{"article_author", "usr", a.AuthorIDs},
		{"article_tag", "tag", a.Tags},
		{"article_reference", "reference", a.ReferenceIDs},
	}
	for _, list := range lists {
		if len(list.values) == 0 {
			continue
		}
		var insert = sq.Insert(list.table).Columns("article", list.column, "position")
		for i, value := range list.values {
			insert = insert.Values(a.ID, value, i)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("storing %s: %w", list.table, err)
		}
	}
	return nil
}
