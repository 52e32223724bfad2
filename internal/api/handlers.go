package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/station"
	"github.com/sells-group/tripgeo/internal/store"
)

type handler struct {
	store   Reader
	started time.Time
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handler) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		writeStoreError(w, err, "no runs have been persisted")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "run "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// listStations returns the latest run's stations, optionally narrowed with
// ?borough= and ?neighbourhood= (case-insensitive).
func (h *handler) listStations(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		writeStoreError(w, err, "no runs have been persisted")
		return
	}
	stations, err := h.store.ListStations(r.Context(), run.ID)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	q := r.URL.Query()
	borough, hood := q.Get("borough"), q.Get("neighbourhood")
	out := make([]station.Assignment, 0, len(stations))
	for _, s := range stations {
		if borough != "" && !strings.EqualFold(s.Borough, borough) {
			continue
		}
		if hood != "" && !strings.EqualFold(s.Neighbourhood, hood) {
			continue
		}
		out = append(out, s)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     run.ID,
		"count":      len(out),
		"stations":   out,
		"unresolved": run.Unresolved,
	})
}

func (h *handler) getStation(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid station name"})
		return
	}

	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		writeStoreError(w, err, "no runs have been persisted")
		return
	}
	a, err := h.store.GetStation(r.Context(), run.ID, name)
	if err != nil {
		writeStoreError(w, err, "station "+name+" not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": notFound})
		return
	}
	zap.L().Error("api: store error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
