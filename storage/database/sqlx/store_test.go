package sqlxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/storage/database"
	sqlxdb "github.com/trezcool/notex/storage/database/sqlx"
)

// setup connects to NOTEX_TEST_DATABASE_URL, skipping the test when unset.
func setup(t *testing.T) *sqlxdb.Store {
	dsn := os.Getenv("NOTEX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NOTEX_TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		_, _ = db.Exec("TRUNCATE documents")
		_ = db.Close()
	})
	_, err = db.Exec("TRUNCATE documents")
	require.NoError(t, err)
	return sqlxdb.NewStore(db)
}

func body(t *testing.T, store *sqlxdb.Store, coll, id string) map[string]interface{} {
	doc, err := store.GetDocument(context.Background(), coll, id)
	require.NoError(t, err)
	var data map[string]interface{}
	require.NoError(t, doc.DataTo(&data))
	return data
}

func TestStore_documents(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	_, err := store.GetDocument(ctx, "users", "u1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, store.UpdateDocument(ctx, "users", "u1", core.Fields{"name": "x"}), core.ErrNotFound)
	assert.ErrorIs(t, store.AddToSet(ctx, "users", "u1", "enrolledCourses", "Physics"), core.ErrNotFound)

	require.NoError(t, store.SetDocument(ctx, "users", "u1", core.Fields{"name": "Jane", "email": "jane@test.cd"}, false))
	require.NoError(t, store.SetDocument(ctx, "users", "u1", core.Fields{"name": "Janet"}, true))
	require.NoError(t, store.UpdateDocument(ctx, "users", "u1", core.Fields{"privateNotes": "hi"}))
	assert.Equal(t, map[string]interface{}{"name": "Janet", "email": "jane@test.cd", "privateNotes": "hi"}, body(t, store, "users", "u1"))

	require.NoError(t, store.AddToSet(ctx, "users", "u1", "enrolledCourses", "Physics"))
	require.NoError(t, store.AddToSet(ctx, "users", "u1", "enrolledCourses", "Physics"))
	require.NoError(t, store.AddToSet(ctx, "users", "u1", "enrolledCourses", "Geography"))
	assert.Equal(t, []interface{}{"Physics", "Geography"}, body(t, store, "users", "u1")["enrolledCourses"])

	// a null field is an empty set, a scalar one is left alone
	require.NoError(t, store.SetDocument(ctx, "profiles", "p1", core.Fields{"enrolledCourses": nil}, false))
	require.NoError(t, store.AddToSet(ctx, "profiles", "p1", "enrolledCourses", "Physics"))
	assert.Equal(t, []interface{}{"Physics"}, body(t, store, "profiles", "p1")["enrolledCourses"])
	require.NoError(t, store.SetDocument(ctx, "profiles", "p1", core.Fields{"enrolledCourses": "Physics"}, false))
	assert.ErrorIs(t, store.AddToSet(ctx, "profiles", "p1", "enrolledCourses", "Geography"), core.ErrMalformedRecord)
	assert.Equal(t, "Physics", body(t, store, "profiles", "p1")["enrolledCourses"])

	require.NoError(t, store.SetDocument(ctx, "users", "u2", core.Fields{"name": "John"}, false))
	docs, err := store.ListDocuments(ctx, "users")
	require.NoError(t, err)
	if assert.Len(t, docs, 2) {
		assert.Equal(t, "u1", docs[0].ID)
		assert.Equal(t, "u2", docs[1].ID)
		assert.False(t, docs[0].UpdatedAt.IsZero())
		assert.True(t, docs[1].UpdatedAt.IsZero())
	}
}

func TestStore_RunTransaction(t *testing.T) {
	store := setup(t)
	ctx := context.Background()
	require.NoError(t, store.SetDocument(ctx, "counters", "c", core.Fields{"n": 0}, false))

	errBoom := errors.New("boom")
	err := store.RunTransaction(ctx, func(ctx context.Context, tx core.DocumentTx) error {
		if err := tx.SetDocument(ctx, "counters", "c", core.Fields{"n": 100}, true); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 0.0, body(t, store, "counters", "c")["n"])

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunTransaction(ctx, func(ctx context.Context, tx core.DocumentTx) error {
				doc, err := tx.GetDocument(ctx, "counters", "c")
				if err != nil {
					return err
				}
				var data struct{ N int }
				if err = doc.DataTo(&data); err != nil {
					return err
				}
				return tx.SetDocument(ctx, "counters", "c", core.Fields{"n": data.N + 1}, true)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10.0, body(t, store, "counters", "c")["n"])
}
