package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/logging"
)

func SetupRoutes(a *API, ws http.Handler, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(log.Named("access")))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Handle("/ws", ws)
	r.Get("/blobs/{key}", a.ServeBlob)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Post("/upload", a.Upload)
		r.Get("/blobs", a.ListBlobs)

		r.Post("/sessions", a.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", a.GetSession)
			r.Delete("/", a.DeleteSession)
			r.Post("/select", a.Select)
			r.Post("/release", a.Release)
			r.Post("/key", a.Key)
			r.Get("/qr.png", a.ShareQR)
		})
	})
	return r
}
