package file_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/file"
	"github.com/trezcool/notex/tests"
)

// countingStore counts the calls reaching the store.
type countingStore struct {
	core.DocumentStore
	calls int32
}

func (s *countingStore) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.DocumentStore.GetDocument(ctx, coll, id)
}

func (s *countingStore) SetDocument(ctx context.Context, coll, id string, fields core.Fields, merge bool) error {
	atomic.AddInt32(&s.calls, 1)
	return s.DocumentStore.SetDocument(ctx, coll, id, fields, merge)
}

func (s *countingStore) ListDocuments(ctx context.Context, coll string) ([]core.Document, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.DocumentStore.ListDocuments(ctx, coll)
}

func (s *countingStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocumentTx) error) error {
	atomic.AddInt32(&s.calls, 1)
	return s.DocumentStore.RunTransaction(ctx, fn)
}

func upload(t *testing.T, app *testutil.App, uid, courseID, filename string) file.UploadedFile {
	f, err := app.Files.Upload(testutil.AuthContext(uid), courseID, filename, strings.NewReader("content of "+filename))
	require.NoError(t, err)
	return f
}

func TestService_SubmitRating(t *testing.T) {
	app := testutil.NewApp(t)
	testutil.SeedCourses(t, app)
	f := upload(t, app, "uploader", "Physics", "waves.pdf")

	rate := func(uid string, rating int) (file.UploadedFile, error) {
		return app.Files.SubmitRating(testutil.AuthContext(uid), "Physics", f.ID, rating)
	}

	got, err := rate("u1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.AverageRating)

	got, err = rate("u2", 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.AverageRating)
	assert.Equal(t, 3.0, got.DisplayRating())
	assert.Equal(t, 2, got.RatingCount)

	// overwrite, no double count
	got, err = rate("u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 3.5, got.AverageRating)
	assert.Equal(t, map[string]int{"u1": 5, "u2": 2}, got.Ratings)

	stored, err := app.Files.Get(testutil.AuthContext("u1"), "Physics", f.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Ratings, stored.Ratings)
	assert.Equal(t, 3.5, stored.AverageRating)
	mine, ok := stored.MyRating("u2")
	assert.True(t, ok)
	assert.Equal(t, 2, mine)
}

func TestService_SubmitRating_errors(t *testing.T) {
	app := testutil.NewApp(t)
	testutil.SeedCourses(t, app)
	f := upload(t, app, "uploader", "Physics", "waves.pdf")

	store := &countingStore{DocumentStore: app.DB}
	svc := file.NewService(store, app.Objects, app.Accounts, app.Courses, app.Logger, 1)

	tests := []struct {
		name      string
		ctx       context.Context
		courseID  string
		fileID    string
		rating    int
		wantErr   error
		wantCalls int32
	}{
		{name: "unauthenticated", ctx: context.Background(), courseID: "Physics", fileID: f.ID, rating: 4, wantErr: core.ErrUnauthenticated},
		{name: "below range", ctx: testutil.AuthContext("u1"), courseID: "Physics", fileID: f.ID, rating: 0, wantErr: core.ErrInvalidInput},
		{name: "above range", ctx: testutil.AuthContext("u1"), courseID: "Physics", fileID: f.ID, rating: 6, wantErr: core.ErrInvalidInput},
		{name: "blank ids", ctx: testutil.AuthContext("u1"), courseID: " ", fileID: "", rating: 3, wantErr: core.ErrInvalidInput},
		{name: "unknown file", ctx: testutil.AuthContext("u1"), courseID: "Physics", fileID: "nope", rating: 3, wantErr: core.ErrNotFound, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic.StoreInt32(&store.calls, 0)
			_, err := svc.SubmitRating(tt.ctx, tt.courseID, tt.fileID, tt.rating)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&store.calls))
		})
	}

	// nothing was recorded
	stored, err := app.Files.Get(testutil.AuthContext("u1"), "Physics", f.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Ratings)
	assert.Zero(t, stored.DisplayRating())
}

func TestService_SubmitRating_concurrent(t *testing.T) {
	app := testutil.NewApp(t)
	testutil.SeedCourses(t, app)
	f := upload(t, app, "uploader", "Chemistry", "bonds.pdf")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := app.Files.SubmitRating(testutil.AuthContext("u"+strings.Repeat("x", i)), "Chemistry", f.ID, i%5+1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := app.Files.Get(testutil.AuthContext("uploader"), "Chemistry", f.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.RatingCount)
	assert.Equal(t, 3.0, stored.AverageRating)
}

func TestService_Upload(t *testing.T) {
	app := testutil.NewApp(t)
	testutil.SeedCourses(t, app)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := app.Files.Upload(context.Background(), "Physics", "a.pdf", strings.NewReader("a"))
		assert.ErrorIs(t, err, core.ErrUnauthenticated)
	})
	t.Run("unknown course", func(t *testing.T) {
		_, err := app.Files.Upload(testutil.AuthContext("u1"), "Alchemy", "a.pdf", strings.NewReader("a"))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
	t.Run("blank filename", func(t *testing.T) {
		_, err := app.Files.Upload(testutil.AuthContext("u1"), "Physics", " ", strings.NewReader("a"))
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
	t.Run("success", func(t *testing.T) {
		f := upload(t, app, "u1", "Physics", "dir/optics.pdf")
		assert.Equal(t, "optics.pdf", f.Filename)
		assert.Equal(t, "u1", f.UploaderID)
		assert.Equal(t, app.Conf.Storage.BaseURL+"/Physics/optics.pdf", f.FileURL)
		assert.Empty(t, f.Ratings)
		assert.Zero(t, f.AverageRating)
	})
}

func TestService_ListCourseFiles(t *testing.T) {
	app := testutil.NewApp(t)
	testutil.SeedCourses(t, app)
	ctx := testutil.AuthContext("u1")

	first := upload(t, app, "u1", "Geography", "rivers.pdf")
	second := upload(t, app, "u2", "Geography", "mountains.pdf")
	upload(t, app, "u1", "Physics", "other.pdf")

	// a record that fails validation on read is left out
	err := app.DB.SetDocument(ctx, core.UploadedFilesCollection("Geography"), "broken", core.Fields{
		"filename": "",
		"fileUrl":  "http://localhost/broken",
	}, false)
	require.NoError(t, err)
	err = app.DB.SetDocument(ctx, core.UploadedFilesCollection("Geography"), "badrating", core.Fields{
		"filename": "bad.pdf",
		"fileUrl":  "http://localhost/bad.pdf",
		"ratings":  map[string]int{"u1": 9},
	}, false)
	require.NoError(t, err)

	files, err := app.Files.ListCourseFiles(ctx, "Geography")
	require.NoError(t, err)
	if assert.Len(t, files, 2) {
		assert.Equal(t, first.ID, files[0].ID)
		assert.Equal(t, second.ID, files[1].ID)
	}

	_, err = app.Files.ListCourseFiles(context.Background(), "Geography")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	_, err = app.Files.Get(ctx, "Geography", "broken")
	assert.ErrorIs(t, err, core.ErrMalformedRecord)
}
