package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/user/arthub/internal/db"
	"github.com/user/arthub/internal/search"
	"github.com/user/arthub/internal/sources"
)

type stubSource struct {
	name    string
	records []db.Artwork
	err     error
}

func (s stubSource) ID() string   { return s.name }
func (s stubSource) Name() string { return s.name }
func (s stubSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	return s.records, s.err
}

var lilies = db.Artwork{
	ID:        "16568",
	Title:     "Water Lilies",
	Artist:    "Claude Monet",
	ImageURL:  "https://img/16568.jpg",
	Source:    "Art Institute of Chicago",
	SourceURL: "https://www.artic.edu/artworks/16568",
}

func newTestServer(t *testing.T, srcs ...sources.Source) *httptest.Server {
	t.Helper()
	store, err := db.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := search.NewCoordinator(srcs, search.WithLogger(logger))
	h := New(coord, store, WithDefaultUser("alice"), WithRecentLimit(2), WithLogger(logger))

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, header ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSearch(t *testing.T) {
	other := db.Artwork{ID: "1", Title: "Bridge over a Pond of Water Lilies", ImageURL: "i", Source: "The MET Museum"}
	srv := newTestServer(t,
		stubSource{name: "Harvard Art Museums", err: errors.New("timeout")},
		stubSource{name: "The MET Museum", records: []db.Artwork{other}},
		stubSource{name: "Art Institute of Chicago", records: []db.Artwork{lilies}},
	)

	resp := do(t, srv, http.MethodGet, "/api/search?q="+url.QueryEscape("water lilies"), nil)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
	res := decodeJSON[search.Result](t, resp)

	if len(res.Records) != 2 || res.Records[0].ID != "16568" {
		t.Errorf("expected exact title match first, got %+v", res.Records)
	}
	assert.DeepEqual(t, res.Failed, []string{"Harvard Art Museums"})
	assert.Equal(t, res.Term, "water lilies")
	assert.Assert(t, res.Token > 0)
}

func TestSearchErrors(t *testing.T) {
	srv := newTestServer(t, stubSource{name: "A", err: errors.New("down")})

	resp := do(t, srv, http.MethodGet, "/api/search?q=ab", nil)
	assert.Equal(t, resp.StatusCode, http.StatusBadRequest)

	resp = do(t, srv, http.MethodGet, "/api/search?q=monet", nil)
	assert.Equal(t, resp.StatusCode, http.StatusBadGateway)

	resp = do(t, srv, http.MethodPost, "/api/search?q=monet", nil)
	assert.Equal(t, resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestSavedLifecycle(t *testing.T) {
	srv := newTestServer(t)
	key := lilies.Key()
	keyPath := "/api/saved/" + url.PathEscape(key)

	resp := do(t, srv, http.MethodPost, "/api/saved", lilies)
	assert.Equal(t, resp.StatusCode, http.StatusCreated)
	created := decodeJSON[savedResponse](t, resp)
	assert.Equal(t, created.Key, key)

	resp = do(t, srv, http.MethodGet, keyPath, nil)
	assert.Equal(t, decodeJSON[savedResponse](t, resp).Saved, true)

	resp = do(t, srv, http.MethodGet, "/api/saved", nil)
	items := decodeJSON[[]db.SavedItem](t, resp)
	if len(items) != 1 || items[0].Title != "Water Lilies" {
		t.Fatalf("unexpected saved list %+v", items)
	}

	resp = do(t, srv, http.MethodDelete, keyPath, nil)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
	resp = do(t, srv, http.MethodGet, keyPath, nil)
	assert.Equal(t, decodeJSON[savedResponse](t, resp).Saved, false)
}

func TestSavedLimit(t *testing.T) {
	srv := newTestServer(t)
	for _, id := range []string{"1", "2", "3"} {
		do(t, srv, http.MethodPost, "/api/saved", db.Artwork{ID: id, Title: id, ImageURL: "i", Source: "S"})
	}

	items := decodeJSON[[]db.SavedItem](t, do(t, srv, http.MethodGet, "/api/saved?limit=1", nil))
	assert.Equal(t, len(items), 1)
	items = decodeJSON[[]db.SavedItem](t, do(t, srv, http.MethodGet, "/api/saved?recent", nil))
	assert.Equal(t, len(items), 2)

	resp := do(t, srv, http.MethodGet, "/api/saved?limit=-1", nil)
	assert.Equal(t, resp.StatusCode, http.StatusBadRequest)
}

func TestSaveRejectsInvalidArtwork(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/api/saved", db.Artwork{Title: "No id"})
	assert.Equal(t, resp.StatusCode, http.StatusBadRequest)

	resp = do(t, srv, http.MethodPost, "/api/saved", nil)
	assert.Equal(t, resp.StatusCode, http.StatusBadRequest)
}

func TestSavedDetailRejectsMalformedKey(t *testing.T) {
	srv := newTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp := do(t, srv, method, "/api/saved/"+url.PathEscape("a:b/c/d"), nil)
		assert.Equal(t, resp.StatusCode, http.StatusBadRequest, method)
	}
}

func TestUserHeader(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/saved", lilies, UserHeader, "bob")

	bobs := decodeJSON[[]db.SavedItem](t, do(t, srv, http.MethodGet, "/api/saved", nil, UserHeader, "bob"))
	alices := decodeJSON[[]db.SavedItem](t, do(t, srv, http.MethodGet, "/api/saved", nil))
	assert.Equal(t, len(bobs), 1)
	assert.Equal(t, len(alices), 0)
}

func TestAuthRequired(t *testing.T) {
	store, err := db.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(search.NewCoordinator(nil), store, WithLogger(logger))

	req := httptest.NewRequest(http.MethodPost, "/api/folders", bytes.NewBufferString(`{"name":"Lilies"}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)
}

func TestFolderLifecycle(t *testing.T) {
	srv := newTestServer(t)
	key := lilies.Key()
	do(t, srv, http.MethodPost, "/api/saved", lilies)

	resp := do(t, srv, http.MethodPost, "/api/folders", folderRequest{Name: "Impressionism"})
	assert.Equal(t, resp.StatusCode, http.StatusCreated)
	folder := decodeJSON[db.Folder](t, resp)
	base := "/api/folders/" + folder.ID

	resp = do(t, srv, http.MethodPost, "/api/folders", folderRequest{Name: "impressionism"})
	assert.Equal(t, resp.StatusCode, http.StatusConflict)
	resp = do(t, srv, http.MethodPost, "/api/folders", folderRequest{Name: "  "})
	assert.Equal(t, resp.StatusCode, http.StatusBadRequest)

	resp = do(t, srv, http.MethodPost, base+"/toggle", toggleRequest{Key: key})
	assert.Equal(t, decodeJSON[toggleResponse](t, resp).Member, true)

	resp = do(t, srv, http.MethodGet, base, nil)
	detail := decodeJSON[folderDetail](t, resp)
	assert.Equal(t, detail.Label, "1 image")
	if len(detail.Items) != 1 || detail.Items[0].Key != key {
		t.Errorf("expected folder to resolve the saved artwork, got %+v", detail.Items)
	}

	resp = do(t, srv, http.MethodPatch, base, folderRequest{Name: "Monet"})
	renamed := decodeJSON[db.Folder](t, resp)
	assert.Equal(t, renamed.ID, folder.ID)
	assert.Equal(t, renamed.Name, "Monet")

	// Unsaving cascades out of the folder.
	do(t, srv, http.MethodDelete, "/api/saved/"+url.PathEscape(key), nil)
	detail = decodeJSON[folderDetail](t, do(t, srv, http.MethodGet, base, nil))
	assert.Equal(t, detail.Label, "Empty")

	resp = do(t, srv, http.MethodDelete, base, nil)
	assert.Equal(t, resp.StatusCode, http.StatusNoContent)
	resp = do(t, srv, http.MethodGet, base, nil)
	assert.Equal(t, resp.StatusCode, http.StatusNotFound)
}

func TestToggleUnsavedConflict(t *testing.T) {
	srv := newTestServer(t)
	folder := decodeJSON[db.Folder](t, do(t, srv, http.MethodPost, "/api/folders", folderRequest{Name: "A"}))

	resp := do(t, srv, http.MethodPost, "/api/folders/"+folder.ID+"/toggle", toggleRequest{Key: lilies.Key()})
	assert.Equal(t, resp.StatusCode, http.StatusConflict)

	resp = do(t, srv, http.MethodGet, "/api/folders/"+folder.ID+"/toggle", nil)
	assert.Equal(t, resp.StatusCode, http.StatusMethodNotAllowed)

	resp = do(t, srv, http.MethodPost, "/api/folders/missing/toggle", toggleRequest{Key: lilies.Key()})
	assert.Equal(t, resp.StatusCode, http.StatusNotFound)
}

func TestHealthcheck(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/healthcheck", nil)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, string(body), "OK")
}
