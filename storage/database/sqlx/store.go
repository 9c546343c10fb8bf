package sqlxdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/notex/core"
)

const (
	selectCols = `SELECT collection, id, data, created_at, updated_at FROM documents`

	getQuery       = selectCols + ` WHERE collection = $1 AND id = $2`
	getForUpdQuery = getQuery + ` FOR UPDATE`
	listQuery      = selectCols + ` WHERE collection = $1 ORDER BY created_at, id`

	replaceQuery = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	mergeQuery = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`
	updateQuery = `UPDATE documents SET data = data || $3::jsonb, updated_at = now()
WHERE collection = $1 AND id = $2`

	// single statement, so concurrent enrollments cannot drop each other.
	// A missing or JSON null field counts as an empty set; any other non-array leaves the row untouched.
	addToSetQuery = `UPDATE documents SET data = jsonb_set(
	data, ARRAY[$3::text],
	CASE WHEN jsonb_typeof(data -> $3::text) <> 'array' OR data -> $3::text IS NULL
			THEN jsonb_build_array($4::text)
		WHEN data -> $3::text @> jsonb_build_array($4::text)
			THEN data -> $3::text
		ELSE (data -> $3::text) || jsonb_build_array($4::text)
	END), updated_at = now()
WHERE collection = $1 AND id = $2 AND COALESCE(jsonb_typeof(data -> $3::text), 'null') IN ('array', 'null')`
	existsQuery = `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`
)

type row struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       []byte    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  null.Time `db:"updated_at"`
}

func (r row) toDocument() core.Document {
	return core.Document{
		Collection: r.Collection,
		ID:         r.ID,
		Data:       r.Data,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.Time.UTC(),
	}
}

// Store is a core.DocumentStore backed by the postgres `documents` table.
type Store struct {
	db *sqlx.DB
}

var _ core.DocumentStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	return get(ctx, s.db, getQuery, coll, id)
}

func (s *Store) SetDocument(ctx context.Context, coll, id string, fields core.Fields, merge bool) error {
	return set(ctx, s.db, coll, id, fields, merge)
}

func (s *Store) UpdateDocument(ctx context.Context, coll, id string, fields core.Fields) error {
	data, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, updateQuery, coll, id, string(data))
	return checkAffected(res, err, "updating document", coll, id)
}

func (s *Store) ListDocuments(ctx context.Context, coll string) ([]core.Document, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, listQuery, coll); err != nil {
		return nil, core.StoreError(err, "listing documents")
	}
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDocument())
	}
	return docs, nil
}

func (s *Store) AddToSet(ctx context.Context, coll, id, field, value string) error {
	res, err := s.db.ExecContext(ctx, addToSetQuery, coll, id, field, value)
	if err = checkAffected(res, err, "adding to set", coll, id); !errors.Is(err, core.ErrNotFound) {
		return err
	}
	var exists bool
	if err2 := s.db.GetContext(ctx, &exists, existsQuery, coll, id); err2 != nil {
		return core.StoreError(err2, "adding to set")
	}
	if exists {
		return errors.Wrapf(core.ErrMalformedRecord, "%s/%s.%s: not an array", coll, id, field)
	}
	return err
}

// RunTransaction runs fn in a READ COMMITTED transaction; reads lock the rows they return.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocumentTx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return core.StoreError(err, "beginning transaction")
	}
	if err = fn(ctx, &transaction{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return core.StoreError(err, "committing transaction")
	}
	return nil
}

type transaction struct {
	tx *sqlx.Tx
}

func (t *transaction) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	return get(ctx, t.tx, getForUpdQuery, coll, id)
}

func (t *transaction) SetDocument(ctx context.Context, coll, id string, fields core.Fields, merge bool) error {
	return set(ctx, t.tx, coll, id, fields, merge)
}

func get(ctx context.Context, q sqlx.QueryerContext, query, coll, id string) (core.Document, error) {
	var r row
	if err := sqlx.GetContext(ctx, q, &r, query, coll, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Document{}, errors.Wrapf(core.ErrNotFound, "%s/%s", coll, id)
		}
		return core.Document{}, core.StoreError(err, "getting document")
	}
	return r.toDocument(), nil
}

func set(ctx context.Context, e sqlx.ExecerContext, coll, id string, fields core.Fields, merge bool) error {
	data, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}
	query := replaceQuery
	if merge {
		query = mergeQuery
	}
	if _, err = e.ExecContext(ctx, query, coll, id, string(data)); err != nil {
		return core.StoreError(err, "setting document")
	}
	return nil
}

func checkAffected(res sql.Result, err error, op, coll, id string) error {
	if err != nil {
		return core.StoreError(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.StoreError(err, op)
	}
	if n == 0 {
		return errors.Wrapf(core.ErrNotFound, "%s/%s", coll, id)
	}
	return nil
}
