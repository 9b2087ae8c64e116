package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	meshhttp "github.com/meshpart/meshpart/internal/adapters/http"
	"github.com/meshpart/meshpart/internal/logging"
	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/observability"
)

type staticSnapshotter struct {
	snap domain.MeshSnapshot
}

func (s staticSnapshotter) Snapshot() domain.MeshSnapshot { return s.snap }

func testSnapshot() domain.MeshSnapshot {
	return domain.MeshSnapshot{
		Rank: 1,
		Size: 2,
		Entities: []domain.EntitySnapshot{
			{
				Key:   domain.EntityKey{Kind: domain.KindVertex, ID: 4},
				Owner: 0,
				Parts: []string{domain.PartShared},
			},
		},
	}
}

func TestHandler_Healthz(t *testing.T) {
	h := meshhttp.NewHandler(staticSnapshotter{}, nil, logging.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandler_MeshSnapshot(t *testing.T) {
	h := meshhttp.NewHandler(staticSnapshotter{snap: testSnapshot()}, nil, logging.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mesh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap domain.MeshSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Rank)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, uint64(4), snap.Entities[0].Key.ID)
}

func TestHandler_MetricsExposedOnlyWithGatherer(t *testing.T) {
	// Without a gatherer the route does not exist.
	h := meshhttp.NewHandler(staticSnapshotter{}, nil, logging.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// With a registry the prometheus text exposition shows up.
	reg := prometheus.NewRegistry()
	met := observability.NewMetrics(reg)
	met.AddMigrated(3)

	h = meshhttp.NewHandler(staticSnapshotter{}, reg, logging.NewNop())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meshpart_entities_migrated_total")
}
