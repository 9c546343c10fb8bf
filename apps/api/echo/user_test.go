package echoapi_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notex/core/user"
	"github.com/trezcool/notex/tests"
)

func Test_userApi_retrieve(t *testing.T) {
	server, app := setup(t)
	usr := testutil.CreateUser(t, app, "Jane", "jane@test.cd", "s3cr3t-pwd")
	stored, err := app.Users.Get(testutil.AuthContext(usr.ID))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "success", token: getToken(t, app, usr), wantCode: http.StatusOK, wantData: marchallObj(t, stored)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/me", tt.token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("missing profile gets defaults", func(t *testing.T) {
		ghost := user.User{ID: "ghost-uid"}
		req, rec := newAuthRequest(http.MethodGet, "/v1/me", getToken(t, app, ghost))
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got user.User
		decodeBody(t, rec, &got)
		assert.Equal(t, "ghost-uid", got.ID)
		assert.Equal(t, user.DefaultName, got.Name)
		assert.Equal(t, user.DefaultEmail, got.Email)
		assert.Empty(t, got.EnrolledCourses)
	})
}

func Test_userApi_addCourse(t *testing.T) {
	server, app := setup(t)
	testutil.SeedCourses(t, app)
	usr := testutil.CreateUser(t, app, "Jane", "jane@test.cd", "s3cr3t-pwd")
	token := getToken(t, app, usr)
	path := "/v1/me/courses"

	tests := []httpTest{
		{name: "auth required", body: []byte(`{"courseId": "Physics"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "course required", body: []byte(`{"courseId": " "}`), token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"courseId": "this field is required"}),
		},
		{
			name: "unknown course", body: []byte(`{"courseId": "Alchemy"}`), token: token, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "enroll", body: []byte(`{"courseId": "Physics"}`), token: token, wantCode: http.StatusOK, extra: []string{"Physics"}},
		{name: "enroll twice", body: []byte(`{"courseId": "Physics"}`), token: token, wantCode: http.StatusOK, extra: []string{"Physics"}},
		{name: "enroll another", body: []byte(`{"courseId": "Chemistry"}`), token: token, wantCode: http.StatusOK, extra: []string{"Physics", "Chemistry"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token, tt.body)
			server.ServeHTTP(rec, req)

			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var got user.User
			decodeBody(t, rec, &got)
			assert.Equal(t, tt.extra, got.EnrolledCourses)

			// the listing agrees
			req, rec = newAuthRequest(http.MethodGet, path, token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, tt.extra)}, rec)
		})
	}
}

func Test_userApi_saveNotes(t *testing.T) {
	server, app := setup(t)
	jane := testutil.CreateUser(t, app, "Jane", "jane@test.cd", "s3cr3t-pwd")
	joe := testutil.CreateUser(t, app, "Joe", "joe@test.cd", "s3cr3t-pwd")
	token := getToken(t, app, jane)
	path := func(uid string) string { return "/v1/users/" + url.PathEscape(uid) + "/notes" }

	tests := []httpTest{
		{
			name: "auth required", path: path(jane.ID), body: []byte(`{"notes": "hello"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "someone else's notes", path: path(joe.ID), body: []byte(`{"notes": "hello"}`), token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "first save", path: path(jane.ID), body: []byte(`{"notes": "first draft"}`), token: token,
			wantCode: http.StatusOK, extra: "first draft",
		},
		{
			name: "last write wins", path: path(jane.ID), body: []byte(`{"notes": "final notes"}`), token: token,
			wantCode: http.StatusOK, extra: "final notes",
		},
		{
			name: "empty notes", path: path(jane.ID), body: []byte(`{"notes": ""}`), token: token,
			wantCode: http.StatusOK, extra: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)

			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]string{"success": "Notes saved."})}, rec)

			usr, err := app.Users.Get(testutil.AuthContext(jane.ID))
			require.NoError(t, err)
			assert.Equal(t, tt.extra, usr.PrivateNotes)
		})
	}

	// joe's notes are untouched
	usr, err := app.Users.Get(testutil.AuthContext(joe.ID))
	require.NoError(t, err)
	assert.Empty(t, usr.PrivateNotes)
}

func Test_userApi_privateFiles(t *testing.T) {
	server, app := setup(t)
	jane := testutil.CreateUser(t, app, "Jane", "jane@test.cd", "s3cr3t-pwd")
	joe := testutil.CreateUser(t, app, "Joe", "joe@test.cd", "s3cr3t-pwd")
	janeToken := getToken(t, app, jane)
	joeToken := getToken(t, app, joe)
	path := "/v1/me/files"

	t.Run("auth required", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, "", "notes.txt", []byte("secret"))
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("file required", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, janeToken, "", nil)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		}, rec)
	})

	var uploaded user.PrivateFile
	t.Run("upload", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, janeToken, "../diary.txt", []byte("dear diary"))
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeBody(t, rec, &uploaded)
		assert.Equal(t, jane.ID, uploaded.OwnerID)
		assert.Equal(t, "diary.txt", uploaded.Filename)
		assert.True(t, strings.HasSuffix(uploaded.FileURL, "/privateFiles/"+jane.ID+"/diary.txt"), uploaded.FileURL)
	})

	t.Run("owner lists own files only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, janeToken)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, uploaded)}, rec)

		req, rec = newAuthRequest(http.MethodGet, path, joeToken)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})

	t.Run("download", func(t *testing.T) {
		u, err := url.Parse(uploaded.FileURL)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
		req.Header.Set("Authorization", "Bearer "+janeToken)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		body, _ := io.ReadAll(rec.Body)
		assert.Equal(t, "dear diary", string(body))

		// hidden from others
		req = httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
		req.Header.Set("Authorization", "Bearer "+joeToken)
		rec = httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
