package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/blobstore"
	"github.com/DoyleJ11/doodle-play-backend/internal/hub"
	"github.com/DoyleJ11/doodle-play-backend/internal/session"
	wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"
)

const (
	qrSize           = 256
	stateWaitTimeout = 2 * time.Second
)

type API struct {
	hub       *hub.Hub
	store     blobstore.Store
	baseURL   string
	maxUpload int64
	log       *zap.Logger
	now       func() time.Time
}

type Options struct {
	Hub           *hub.Hub
	Store         blobstore.Store
	BaseURL       string
	MaxUploadSize int64
	Logger        *zap.Logger
}

func NewAPI(opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxUpload := opts.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &API{
		hub:       opts.Hub,
		store:     opts.Store,
		baseURL:   opts.BaseURL,
		maxUpload: maxUpload,
		log:       log.Named("http"),
		now:       time.Now,
	}
}

type blobItem struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
	Size       int64     `json:"size"`
}

type sessionView struct {
	ID      string             `json:"id"`
	Version int                `json:"version"`
	Viewers int                `json:"viewers"`
	State   wire.StageSnapshot `json:"state"`
}

// Upload stores the request body as a new drawing.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxUpload))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Blob too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No blob provided")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No blob provided")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "image/png"
	}

	key := fmt.Sprintf("%s%d.png", blobstore.DrawingPrefix, a.now().UnixMilli())
	obj, err := a.store.Put(r.Context(), key, body, contentType)
	if err != nil {
		a.log.Error("upload failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}
	a.log.Info("drawing uploaded", zap.String("key", obj.Key), zap.Int64("size", obj.Size))

	a.hub.Send(hub.DrawingAdded{Drawing: blobstore.ToDrawing(obj)})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": obj.URL})
}

func (a *API) ListBlobs(w http.ResponseWriter, r *http.Request) {
	objs, err := a.store.List(r.Context(), blobstore.DrawingPrefix, blobstore.GalleryLimit)
	if err != nil {
		a.log.Error("blob list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load drawings")
		return
	}

	items := make([]blobItem, len(objs))
	for i, o := range objs {
		items[i] = blobItem{ID: o.Key, URL: o.URL, UploadedAt: o.UploadedAt, Size: o.Size}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ServeBlob serves objects of stores without public URLs.
func (a *API) ServeBlob(w http.ResponseWriter, r *http.Request) {
	opener, ok := a.store.(blobstore.Opener)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, contentType, err := opener.Open(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, blobstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.log.Error("blob read failed", zap.Error(err))
		http.Error(w, "blob read failed", http.StatusInternalServerError)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.hub.Create()
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID()})
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}

	reply := make(chan session.View, 1)
	if !s.Send(session.GetState{Reply: reply}) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	select {
	case v := <-reply:
		writeJSON(w, http.StatusOK, sessionView{ID: s.ID(), Version: v.Version, Viewers: v.NumViewers, State: v.Stage})
	case <-s.Done():
		writeError(w, http.StatusNotFound, "session not found")
	case <-time.After(stateWaitTimeout):
		writeError(w, http.StatusGatewayTimeout, "session busy")
	}
}

func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.hub.Send(hub.RemoveSession{ID: s.ID()})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}

	var req struct {
		DrawingID string `json:"drawing_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DrawingID == "" {
		writeError(w, http.StatusBadRequest, "missing drawing_id")
		return
	}
	a.enqueue(w, s, session.Select{DrawingID: req.DrawingID})
}

func (a *API) Release(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.enqueue(w, s, session.Release{})
}

func (a *API) Key(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	a.enqueue(w, s, session.Key{Key: req.Key})
}

// ShareQR renders a QR code that opens the same stage on another device.
func (a *API) ShareQR(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}

	png, err := qrcode.Encode(a.shareURL(s.ID()), qrcode.Medium, qrSize)
	if err != nil {
		a.log.Error("qr generation failed", zap.Error(err))
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (a *API) shareURL(id string) string {
	return a.baseURL + "/?session=" + id
}

func (a *API) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s := a.hub.Get(chi.URLParam(r, "id"))
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func (a *API) enqueue(w http.ResponseWriter, s *session.Session, m session.Msg) {
	if !s.Send(m) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
