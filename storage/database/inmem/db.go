package inmemdb

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

type document struct {
	data      json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

type collection map[string]*document

// DB is a core.DocumentStore kept in memory. Transactions hold the write lock for their whole duration.
type DB struct {
	mutex       sync.RWMutex
	collections map[string]collection
	lastWrite   time.Time
}

var _ core.DocumentStore = (*DB)(nil)

func NewDB() *DB {
	return &DB{collections: make(map[string]collection)}
}

// Reset drops every document.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.collections = make(map[string]collection)
}

func (db *DB) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, errors.Wrap(err, "getting document")
	}
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.get(coll, id)
}

func (db *DB) SetDocument(ctx context.Context, coll, id string, fields core.Fields, merge bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "setting document")
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	doc, err := db.prepareSet(db.lookup(coll, id), fields, merge)
	if err != nil {
		return err
	}
	db.put(coll, id, doc)
	return nil
}

func (db *DB) UpdateDocument(ctx context.Context, coll, id string, fields core.Fields) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "updating document")
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	curr := db.lookup(coll, id)
	if curr == nil {
		return errors.Wrapf(core.ErrNotFound, "%s/%s", coll, id)
	}
	doc, err := db.prepareSet(curr, fields, true)
	if err != nil {
		return err
	}
	db.put(coll, id, doc)
	return nil
}

func (db *DB) ListDocuments(ctx context.Context, coll string) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "listing documents")
	}
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	docs := make([]core.Document, 0, len(db.collections[coll]))
	for id, doc := range db.collections[coll] {
		docs = append(docs, toDocument(coll, id, doc))
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (db *DB) AddToSet(ctx context.Context, coll, id, field, value string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "adding to set")
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	curr := db.lookup(coll, id)
	if curr == nil {
		return errors.Wrapf(core.ErrNotFound, "%s/%s", coll, id)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(curr.data, &body); err != nil {
		return errors.Wrapf(core.ErrMalformedRecord, "%s/%s: %v", coll, id, err)
	}
	var set []string
	if raw, ok := body[field]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &set); err != nil {
			return errors.Wrapf(core.ErrMalformedRecord, "%s/%s.%s: %v", coll, id, field, err)
		}
	}
	for _, v := range set {
		if v == value {
			return nil
		}
	}

	doc, err := db.prepareSet(curr, core.Fields{field: append(set, value)}, true)
	if err != nil {
		return err
	}
	db.put(coll, id, doc)
	return nil
}

func (db *DB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocumentTx) error) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tx := &transaction{db: db, staged: make(map[txKey]*document)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	for k, doc := range tx.staged {
		db.put(k.coll, k.id, doc)
	}
	return nil
}

// The helpers below expect the caller to hold the write lock (lookup and get only need a read lock).

func (db *DB) lookup(coll, id string) *document {
	if c, ok := db.collections[coll]; ok {
		return c[id]
	}
	return nil
}

func (db *DB) get(coll, id string) (core.Document, error) {
	doc := db.lookup(coll, id)
	if doc == nil {
		return core.Document{}, errors.Wrapf(core.ErrNotFound, "%s/%s", coll, id)
	}
	return toDocument(coll, id, doc), nil
}

func (db *DB) put(coll, id string, doc *document) {
	c, ok := db.collections[coll]
	if !ok {
		c = make(collection)
		db.collections[coll] = c
	}
	c[id] = doc
}

func (db *DB) prepareSet(curr *document, fields core.Fields, merge bool) (*document, error) {
	now := db.now()
	doc := &document{createdAt: now}
	var base json.RawMessage
	if curr != nil {
		doc.createdAt = curr.createdAt
		doc.updatedAt = now
		if merge {
			base = curr.data
		}
	}

	var err error
	if base != nil {
		doc.data, err = core.MergeFields(base, fields)
	} else {
		doc.data, err = core.EncodeFields(fields)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// now never repeats, so documents keep their insertion order.
func (db *DB) now() time.Time {
	now := time.Now().UTC()
	if !now.After(db.lastWrite) {
		now = db.lastWrite.Add(time.Microsecond)
	}
	db.lastWrite = now
	return now
}

func toDocument(coll, id string, doc *document) core.Document {
	data := make(json.RawMessage, len(doc.data))
	copy(data, doc.data)
	return core.Document{
		Collection: coll,
		ID:         id,
		Data:       data,
		CreatedAt:  doc.createdAt,
		UpdatedAt:  doc.updatedAt,
	}
}

type txKey struct {
	coll, id string
}

// transaction reads through its staged writes. The DB mutex is held by RunTransaction.
type transaction struct {
	db     *DB
	staged map[txKey]*document
}

func (tx *transaction) lookup(coll, id string) *document {
	if doc, ok := tx.staged[txKey{coll, id}]; ok {
		return doc
	}
	return tx.db.lookup(coll, id)
}

func (tx *transaction) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, errors.Wrap(err, "getting document")
	}
	doc := tx.lookup(coll, id)
	if doc == nil {
		return core.Document{}, errors.Wrapf(core.ErrNotFound, "%s/%s", coll, id)
	}
	return toDocument(coll, id, doc), nil
}

func (tx *transaction) SetDocument(ctx context.Context, coll, id string, fields core.Fields, merge bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "setting document")
	}
	doc, err := tx.db.prepareSet(tx.lookup(coll, id), fields, merge)
	if err != nil {
		return err
	}
	tx.staged[txKey{coll, id}] = doc
	return nil
}
