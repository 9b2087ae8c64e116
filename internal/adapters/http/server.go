// Package http serves one rank's introspection surface: health, a JSON
// snapshot of the local mesh, and prometheus metrics. It is a debug
// endpoint, not a public API.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshpart/meshpart/pkg/domain"
)

// Snapshotter is the read-only seam onto the mesh; *meshpart.Mesh satisfies
// it.
type Snapshotter interface {
	Snapshot() domain.MeshSnapshot
}

// NewHandler builds the debug router. gatherer may be nil to omit /metrics.
func NewHandler(mesh Snapshotter, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/mesh", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(mesh.Snapshot()); err != nil {
			logger.Error("snapshot encode failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
		}
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
