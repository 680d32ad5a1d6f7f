package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/doodle-play-backend/internal/blobstore"
	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
	"github.com/DoyleJ11/doodle-play-backend/internal/hub"
	"github.com/DoyleJ11/doodle-play-backend/internal/session"
)

const base = "http://doodle.test"

type brokenStore struct{}

func (brokenStore) List(context.Context, string, int) ([]blobstore.Object, error) {
	return nil, errors.New("bucket on fire")
}

func (brokenStore) Put(context.Context, string, []byte, string) (blobstore.Object, error) {
	return blobstore.Object{}, errors.New("bucket on fire")
}

func newRouter(t *testing.T, store blobstore.Store) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zaptest.NewLogger(t)
	h := hub.NewHub(ctx, session.Options{
		Strategy: engine.Dynamic{Routing: engine.RouteByID},
		Loader:   blobstore.GalleryLoader(store),
	}, log)

	api := NewAPI(Options{Hub: h, Store: store, BaseURL: base, MaxUploadSize: 1024, Logger: log})
	api.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return SetupRoutes(api, http.NotFoundHandler(), log)
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUpload_EmptyBody(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))

	rec := do(t, r, http.MethodPost, "/api/upload", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No blob provided", decode[map[string]string](t, rec)["error"])
}

func TestUpload_TooLarge(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))

	rec := do(t, r, http.MethodPost, "/api/upload", bytes.Repeat([]byte{1}, 2048))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_ListAndServe(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))
	png := []byte("\x89PNG fake")

	rec := do(t, r, http.MethodPost, "/api/upload", png)
	require.Equal(t, http.StatusOK, rec.Code)
	up := decode[struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}](t, rec)
	assert.True(t, up.Success)
	assert.Equal(t, base+"/blobs/drawing-1700000000000.png", up.URL)

	rec = do(t, r, http.MethodGet, "/api/blobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []blobItem `json:"items"`
	}](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "drawing-1700000000000.png", list.Items[0].ID)
	assert.Equal(t, int64(len(png)), list.Items[0].Size)

	rec = do(t, r, http.MethodGet, "/blobs/drawing-1700000000000.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = do(t, r, http.MethodGet, "/blobs/drawing-404.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreFailures(t *testing.T) {
	r := newRouter(t, brokenStore{})

	rec := do(t, r, http.MethodPost, "/api/upload", []byte("png"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Upload failed", decode[map[string]string](t, rec)["error"])

	rec = do(t, r, http.MethodGet, "/api/blobs", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load drawings", decode[map[string]string](t, rec)["error"])

	// No Opener: nothing to serve.
	rec = do(t, r, http.MethodGet, "/blobs/drawing-1.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)
	return id
}

func getSession(t *testing.T, r http.Handler, id string) sessionView {
	t.Helper()
	v, ok := peekSession(r, id)
	require.True(t, ok, "session %s not readable", id)
	return v
}

// peekSession never fails the test, so it can run inside Eventually.
func peekSession(r http.Handler, id string) (sessionView, bool) {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	if rec.Code != http.StatusOK {
		return sessionView{}, false
	}
	var v sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		return sessionView{}, false
	}
	return v, true
}

func TestSession_SelectReleaseLifecycle(t *testing.T) {
	store := blobstore.NewMemory(base)
	_, err := store.Put(context.Background(), "drawing-1.png", []byte("a"), "image/png")
	require.NoError(t, err)
	r := newRouter(t, store)

	id := createSession(t, r)
	require.Eventually(t, func() bool {
		v, ok := peekSession(r, id)
		return ok && !v.State.Loading && len(v.State.Gallery) == 1
	}, time.Second, 10*time.Millisecond)

	rec := do(t, r, http.MethodPost, "/api/sessions/"+id+"/select", []byte(`{"drawing_id":"drawing-1.png"}`))
	require.Equal(t, http.StatusAccepted, rec.Code)

	v := getSession(t, r, id)
	require.NotNil(t, v.State.Pending)
	assert.Equal(t, "drawing-1.png", v.State.Pending.ID)
	assert.True(t, v.State.Awaiting)

	rec = do(t, r, http.MethodPost, "/api/sessions/"+id+"/release", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	v = getSession(t, r, id)
	assert.Nil(t, v.State.Pending)

	rec = do(t, r, http.MethodPost, "/api/sessions/"+id+"/key", []byte(`{"key":"ArrowUp"}`))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, r, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSession_BadRequests(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))
	id := createSession(t, r)

	rec := do(t, r, http.MethodPost, "/api/sessions/"+id+"/select", []byte(`{"drawing_id":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad json", decode[map[string]string](t, rec)["error"])

	rec = do(t, r, http.MethodPost, "/api/sessions/"+id+"/select", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing drawing_id", decode[map[string]string](t, rec)["error"])

	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/release", "/api/sessions/nope/qr.png"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "release") {
			method = http.MethodPost
		}
		rec = do(t, r, method, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "session not found", decode[map[string]string](t, rec)["error"])
	}
}

func TestUpload_ReachesOpenSessions(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))
	id := createSession(t, r)
	require.Eventually(t, func() bool {
		v, ok := peekSession(r, id)
		return ok && !v.State.Loading
	}, time.Second, 10*time.Millisecond)

	rec := do(t, r, http.MethodPost, "/api/upload", []byte("png"))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		v, ok := peekSession(r, id)
		return ok && len(v.State.Gallery) == 1 && v.State.Gallery[0].ID == "drawing-1700000000000.png"
	}, time.Second, 10*time.Millisecond)
}

func TestShareQR(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))
	id := createSession(t, r)

	rec := do(t, r, http.MethodGet, "/api/sessions/"+id+"/qr.png", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestHealthz(t *testing.T) {
	r := newRouter(t, blobstore.NewMemory(base))
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", nil).Code)
}
