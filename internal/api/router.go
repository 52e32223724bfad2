// Package api serves the latest persisted run over a read-only HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/station"
	"github.com/sells-group/tripgeo/internal/store"
)

// Reader is the read side of store.Store used by the handlers.
type Reader interface {
	GetRun(ctx context.Context, id string) (*store.Run, error)
	LatestRun(ctx context.Context) (*store.Run, error)
	ListStations(ctx context.Context, runID string) ([]station.Assignment, error)
	GetStation(ctx context.Context, runID, name string) (*station.Assignment, error)
}

// NewRouter builds the chi router. allowedOrigins configures CORS; empty
// allows any origin.
func NewRouter(rd Reader, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	h := &handler{store: rd, started: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", h.health)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/latest", h.latestRun)
		r.Get("/{id}", h.getRun)
	})
	r.Route("/stations", func(r chi.Router) {
		r.Get("/", h.listStations)
		r.Get("/{name}", h.getStation)
	})
	return r
}

// requestLogger logs each request with method, path, status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
