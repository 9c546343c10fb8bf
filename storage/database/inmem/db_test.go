package inmemdb_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notex/core"
	inmemdb "github.com/trezcool/notex/storage/database/inmem"
)

const coll = "things"

func data(t *testing.T, db *inmemdb.DB, id string) map[string]interface{} {
	doc, err := db.GetDocument(context.Background(), coll, id)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, doc.DataTo(&body))
	return body
}

func TestDB_SetDocument(t *testing.T) {
	db := inmemdb.NewDB()
	ctx := context.Background()

	_, err := db.GetDocument(ctx, coll, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, db.SetDocument(ctx, coll, "a", core.Fields{"x": 1, "y": "two"}, false))
	assert.Equal(t, map[string]interface{}{"x": 1.0, "y": "two"}, data(t, db, "a"))

	require.NoError(t, db.SetDocument(ctx, coll, "a", core.Fields{"x": 3}, true))
	assert.Equal(t, map[string]interface{}{"x": 3.0, "y": "two"}, data(t, db, "a"))

	require.NoError(t, db.SetDocument(ctx, coll, "a", core.Fields{"z": true}, false))
	assert.Equal(t, map[string]interface{}{"z": true}, data(t, db, "a"))

	doc, err := db.GetDocument(ctx, coll, "a")
	require.NoError(t, err)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.IsZero())

	err = db.SetDocument(ctx, coll, "b", core.Fields{"f": func() {}}, false)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDB_UpdateDocument(t *testing.T) {
	db := inmemdb.NewDB()
	ctx := context.Background()

	err := db.UpdateDocument(ctx, coll, "missing", core.Fields{"x": 1})
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, db.SetDocument(ctx, coll, "a", core.Fields{"x": 1}, false))
	require.NoError(t, db.UpdateDocument(ctx, coll, "a", core.Fields{"y": 2}))
	assert.Equal(t, map[string]interface{}{"x": 1.0, "y": 2.0}, data(t, db, "a"))
}

func TestDB_ListDocuments(t *testing.T) {
	db := inmemdb.NewDB()
	ctx := context.Background()

	docs, err := db.ListDocuments(ctx, coll)
	require.NoError(t, err)
	assert.Empty(t, docs)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, db.SetDocument(ctx, coll, id, core.Fields{}, false))
	}
	require.NoError(t, db.SetDocument(ctx, "others", "z", core.Fields{}, false))
	// rewriting keeps the creation time
	require.NoError(t, db.SetDocument(ctx, coll, "c", core.Fields{"v": 2}, false))

	docs, err = db.ListDocuments(ctx, coll)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
		assert.Equal(t, coll, d.Collection)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestDB_AddToSet(t *testing.T) {
	db := inmemdb.NewDB()
	ctx := context.Background()

	err := db.AddToSet(ctx, coll, "missing", "tags", "go")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, db.SetDocument(ctx, coll, "a", core.Fields{"name": "a"}, false))
	require.NoError(t, db.AddToSet(ctx, coll, "a", "tags", "go"))
	require.NoError(t, db.AddToSet(ctx, coll, "a", "tags", "go"))
	require.NoError(t, db.AddToSet(ctx, coll, "a", "tags", "sql"))
	assert.Equal(t, map[string]interface{}{"name": "a", "tags": []interface{}{"go", "sql"}}, data(t, db, "a"))

	require.NoError(t, db.SetDocument(ctx, coll, "null", core.Fields{"tags": nil}, false))
	require.NoError(t, db.AddToSet(ctx, coll, "null", "tags", "go"))
	assert.Equal(t, map[string]interface{}{"tags": []interface{}{"go"}}, data(t, db, "null"))

	require.NoError(t, db.SetDocument(ctx, coll, "bad", core.Fields{"tags": "nope"}, false))
	err = db.AddToSet(ctx, coll, "bad", "tags", "go")
	assert.ErrorIs(t, err, core.ErrMalformedRecord)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, db.AddToSet(ctx, coll, "a", "tags", fmt.Sprintf("t%d", i%3)))
		}(i)
	}
	wg.Wait()
	assert.Len(t, data(t, db, "a")["tags"], 5)
}

func TestDB_RunTransaction(t *testing.T) {
	db := inmemdb.NewDB()
	ctx := context.Background()
	require.NoError(t, db.SetDocument(ctx, coll, "counter", core.Fields{"n": 0}, false))

	errBoom := errors.New("boom")
	err := db.RunTransaction(ctx, func(ctx context.Context, tx core.DocumentTx) error {
		if err := tx.SetDocument(ctx, coll, "counter", core.Fields{"n": 100}, true); err != nil {
			return err
		}
		doc, err := tx.GetDocument(ctx, coll, "counter")
		if err != nil {
			return err
		}
		assert.JSONEq(t, `{"n":100}`, string(doc.Data), "reads see staged writes")
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 0.0, data(t, db, "counter")["n"], "writes are discarded")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.RunTransaction(ctx, func(ctx context.Context, tx core.DocumentTx) error {
				doc, err := tx.GetDocument(ctx, coll, "counter")
				if err != nil {
					return err
				}
				var body struct{ N int }
				if err = doc.DataTo(&body); err != nil {
					return err
				}
				return tx.SetDocument(ctx, coll, "counter", core.Fields{"n": body.N + 1}, true)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 25.0, data(t, db, "counter")["n"])

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = db.RunTransaction(canceled, func(ctx context.Context, tx core.DocumentTx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
