package mockapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restqa/internal/mockapi"
	"restqa/internal/model"
)

func setup(t *testing.T, base string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mockapi.New(mockapi.NewStore(), mockapi.Options{BasePath: base, Log: zerolog.Nop()}))
	t.Cleanup(srv.Close)
	return srv
}

type result struct {
	status int
	header http.Header
	body   map[string]any
	list   []map[string]any
}

func call(t *testing.T, method, url, body string, auth ...string) result {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := result{status: resp.StatusCode, header: resp.Header}
	if len(data) > 0 {
		if data[0] == '[' {
			require.NoError(t, json.Unmarshal(data, &out.list))
		} else {
			require.NoError(t, json.Unmarshal(data, &out.body))
		}
	}
	return out
}

func TestPosts_CRUD(t *testing.T) {
	srv := setup(t, "")

	list := call(t, "GET", srv.URL+"/posts", "")
	require.Equal(t, http.StatusOK, list.status)
	assert.Len(t, list.list, mockapi.SeedPosts)
	assert.Equal(t, "application/json; charset=utf-8", list.header.Get("Content-Type"))

	one := call(t, "GET", srv.URL+"/posts/1", "")
	require.Equal(t, http.StatusOK, one.status)
	assert.EqualValues(t, 1, one.body["id"])
	assert.EqualValues(t, 1, one.body["userId"])

	assert.Equal(t, http.StatusNotFound, call(t, "GET", srv.URL+"/posts/99999", "").status)

	created := call(t, "POST", srv.URL+"/posts", `{"userId":1,"title":"Test Post Title","body":"This is test post body content"}`)
	require.Equal(t, http.StatusCreated, created.status)
	assert.EqualValues(t, mockapi.SeedPosts+1, created.body["id"])
	assert.Equal(t, "Test Post Title", created.body["title"])

	fetched := call(t, "GET", srv.URL+"/posts/101", "")
	require.Equal(t, http.StatusOK, fetched.status)
	assert.Equal(t, "This is test post body content", fetched.body["body"])

	put := call(t, "PUT", srv.URL+"/posts/1", `{"id":1,"userId":1,"title":"Updated Test Title","body":"Updated test body content"}`)
	require.Equal(t, http.StatusOK, put.status)
	assert.Equal(t, "Updated Test Title", put.body["title"])

	patch := call(t, "PATCH", srv.URL+"/posts/1", `{"title":"Patched"}`)
	require.Equal(t, http.StatusOK, patch.status)
	assert.Equal(t, "Patched", patch.body["title"])
	assert.Equal(t, "Updated test body content", patch.body["body"])

	del := call(t, "DELETE", srv.URL+"/posts/1", "")
	require.Equal(t, http.StatusOK, del.status)
	assert.Empty(t, del.body)
	assert.Equal(t, http.StatusNotFound, call(t, "GET", srv.URL+"/posts/1", "").status)
	assert.Equal(t, http.StatusNotFound, call(t, "DELETE", srv.URL+"/posts/1", "").status)
}

func TestPosts_InvalidPayloads(t *testing.T) {
	srv := setup(t, "")

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown fields accepted", `{"invalidField":"value"}`, http.StatusCreated},
		{"malformed", `{"title":`, http.StatusBadRequest},
		{"empty", ``, http.StatusBadRequest},
		{"not an object", `[1,2]`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, call(t, "POST", srv.URL+"/posts", tt.body).status)
		})
	}
}

func TestPosts_FilterByUser(t *testing.T) {
	srv := setup(t, "")
	res := call(t, "GET", srv.URL+"/posts?userId=3", "")
	require.Equal(t, http.StatusOK, res.status)
	require.Len(t, res.list, 10)
	for _, p := range res.list {
		assert.EqualValues(t, 3, p["userId"])
	}
}

func TestReqresUsers(t *testing.T) {
	srv := setup(t, "/api")

	page := call(t, "GET", srv.URL+"/api/users?page=2", "")
	require.Equal(t, http.StatusOK, page.status)
	assert.EqualValues(t, 2, page.body["page"])
	assert.EqualValues(t, 12, page.body["total"])
	assert.Len(t, page.body["data"], mockapi.PerPage)
	assert.Equal(t, "cloudflare", page.header.Get("Server"))

	single := call(t, "GET", srv.URL+"/api/users/2", "")
	require.Equal(t, http.StatusOK, single.status)
	data := single.body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["id"])
	assert.Equal(t, "Janet", data["first_name"])
	assert.Equal(t, "janet.weaver@reqres.in", data["email"])

	missing := call(t, "GET", srv.URL+"/api/users/23", "")
	assert.Equal(t, http.StatusNotFound, missing.status)
	assert.Empty(t, missing.body)

	created := call(t, "POST", srv.URL+"/api/users", `{"name":"morpheus","job":"leader"}`)
	require.Equal(t, http.StatusCreated, created.status)
	assert.Equal(t, "morpheus", created.body["name"])
	assert.NotEmpty(t, created.body["id"])
	assert.NotEmpty(t, created.body["createdAt"])

	updated := call(t, "PUT", srv.URL+"/api/users/2", `{"name":"morpheus","job":"zion resident"}`)
	require.Equal(t, http.StatusOK, updated.status)
	assert.Equal(t, "zion resident", updated.body["job"])
	assert.NotEmpty(t, updated.body["updatedAt"])

	assert.Equal(t, http.StatusNoContent, call(t, "DELETE", srv.URL+"/api/users/2", "").status)
	assert.Equal(t, http.StatusBadRequest, call(t, "POST", srv.URL+"/api/users", `{"name":`).status)

	// Routes exist only below the base path.
	assert.Equal(t, http.StatusNotFound, call(t, "GET", srv.URL+"/users/2", "").status)
}

func TestRegister(t *testing.T) {
	srv := setup(t, "/api")

	ok := call(t, "POST", srv.URL+"/api/register", `{"email":"eve.holt@reqres.in","password":"pistol"}`)
	require.Equal(t, http.StatusOK, ok.status)
	assert.EqualValues(t, 4, ok.body["id"])
	assert.NotEmpty(t, ok.body["token"])

	bad := call(t, "POST", srv.URL+"/api/register", `{"email":"sydney@fife"}`)
	require.Equal(t, http.StatusBadRequest, bad.status)
	assert.Equal(t, "Missing password", bad.body["error"])

	unknown := call(t, "POST", srv.URL+"/api/register", `{"email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, unknown.status)
}

func TestAccountsAndBooks(t *testing.T) {
	srv := setup(t, "")
	creds := `{"email":"ABC123@example.com","password":"XYZ789"}`

	assert.Equal(t, http.StatusCreated, call(t, "POST", srv.URL+"/signup", creds).status)
	assert.Equal(t, http.StatusConflict, call(t, "POST", srv.URL+"/signup", creds).status)
	assert.Equal(t, http.StatusBadRequest, call(t, "POST", srv.URL+"/signup", `{"email":"x@example.com"}`).status)

	login := call(t, "POST", srv.URL+"/login", creds)
	require.Equal(t, http.StatusOK, login.status)
	assert.NotEmpty(t, login.body["token"])
	assert.Equal(t, http.StatusUnauthorized, call(t, "POST", srv.URL+"/login", `{"email":"ABC123@example.com","password":"nope"}`).status)
	assert.Equal(t, http.StatusBadRequest, call(t, "POST", srv.URL+"/login", `{}`).status)

	book := `{"title":"The Go Programming Language","author":"Donovan","isbn":"978-0134190440"}`
	unauth := call(t, "POST", srv.URL+"/books", book)
	assert.Equal(t, http.StatusUnauthorized, unauth.status)
	assert.NotEmpty(t, unauth.header.Get("WWW-Authenticate"))

	added := call(t, "POST", srv.URL+"/books", book, "ABC123@example.com", "XYZ789")
	require.Equal(t, http.StatusCreated, added.status)
	assert.EqualValues(t, 1, added.body["id"])

	got := call(t, "GET", srv.URL+"/books/1", "", "ABC123@example.com", "XYZ789")
	require.Equal(t, http.StatusOK, got.status)
	assert.Equal(t, "Donovan", got.body["author"])
	assert.Equal(t, http.StatusNotFound, call(t, "GET", srv.URL+"/books/9", "", "ABC123@example.com", "XYZ789").status)
}

func TestStore_ConcurrentCreates(t *testing.T) {
	store := mockapi.NewStore()
	var wg sync.WaitGroup
	ids := make(chan int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := store.CreatePost(model.Post{UserID: 1, Title: "concurrent"})
			ids <- *p.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, store.ListPosts(), mockapi.SeedPosts+50)

	store.Reset()
	assert.Len(t, store.ListPosts(), mockapi.SeedPosts)
}
