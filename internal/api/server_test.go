package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/blockworld/internal/api/replay"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, rs *replay.ReplayService) (*Server, *world.World) {
	t.Helper()
	w, err := world.Create(t.TempDir(), "API", 1, world.GeneratorFlatland, world.Options{
		Blocks:          implementations.NewDefaultRegistry(),
		DisableLighting: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	reg := prometheus.NewRegistry()
	s := NewServer(Config{
		World:      w,
		Mode:       gin.TestMode,
		Registerer: reg,
		Gatherer:   reg,
		Replay:     rs,
	})
	return s, w
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec, _ := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestBlock_InMemoryOnly(t *testing.T) {
	s, w := newTestServer(t, nil)

	rec, resp := do(t, s, http.MethodGet, "/api/dimensions/0/blocks/3/4/5")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)

	d, err := w.Dimension(world.Overworld)
	require.NoError(t, err)
	_, err = d.GetChunk(vec.GlobalChunk{X: 0, Z: 0}, world.Generate)
	require.NoError(t, err)

	rec, resp = do(t, s, http.MethodGet, "/api/dimensions/0/blocks/3/4/5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	var b BlockResponse
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, block.GrassBlockID, b.ID)
	assert.Equal(t, "grass", b.Name)
	assert.Equal(t, vec.GlobalVoxel{X: 3, Y: 4, Z: 5}, b.Coordinates)

	rec, _ = do(t, s, http.MethodGet, "/api/dimensions/0/blocks/3/500/5")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlock_BadParams(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodGet, "/api/dimensions/7/blocks/0/0/0")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/dimensions/zero/blocks/0/0/0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/dimensions/0/blocks/a/0/0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChunk_Efforts(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodGet, "/api/dimensions/0/chunks/1/-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/dimensions/0/chunks/1/-1?effort=load")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/dimensions/0/chunks/1/-1?effort=teleport")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := do(t, s, http.MethodGet, "/api/dimensions/0/chunks/1/-1?effort=generate")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum ChunkSummary
	require.NoError(t, json.Unmarshal(resp.Data, &sum))
	assert.Equal(t, vec.GlobalChunk{X: 1, Z: -1}, sum.Coords)
	assert.True(t, sum.TerrainPopulated)
	require.Len(t, sum.HeightMap, 256)
	for _, h := range sum.HeightMap {
		assert.Equal(t, 5, h)
	}

	rec, _ = do(t, s, http.MethodGet, "/api/dimensions/0/chunks/1/-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLightingStatsAndSave(t *testing.T) {
	s, w := newTestServer(t, nil)
	d, err := w.Dimension(world.Overworld)
	require.NoError(t, err)
	_, err = d.GetChunk(vec.GlobalChunk{X: 0, Z: 0}, world.Generate)
	require.NoError(t, err)

	rec, resp := do(t, s, http.MethodGet, "/api/lighting")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"total":0`)

	rec, resp = do(t, s, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"world":"API"`)
	assert.Contains(t, string(resp.Data), `"chunks":1`)

	rec, resp = do(t, s, http.MethodPost, "/api/save")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.FileExists(t, w.Dir()+"/region/r.0.0.mcr")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/health")

	rec, _ := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "blockworld_api_http_request_duration_seconds")
}

func TestEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec, _ := do(t, s, http.MethodGet, "/api/events")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ctx := context.Background()
	store := replay.NewMemoryStore(8)
	require.NoError(t, store.WriteEvent(ctx, &eventbus.Envelope{ID: "a", EventType: eventbus.TypeChunkGenerated, Timestamp: time.Now()}))
	require.NoError(t, store.WriteEvent(ctx, &eventbus.Envelope{ID: "b", EventType: eventbus.TypeBlockChanged, Timestamp: time.Now()}))

	s, _ = newTestServer(t, replay.NewReplayService(store))
	rec, resp := do(t, s, http.MethodGet, "/api/events?type=BlockChanged")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"total":1`)
	assert.Contains(t, string(resp.Data), `"id":"b"`)

	rec, _ = do(t, s, http.MethodGet, "/api/events?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/events?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec, resp = do(t, s, http.MethodGet, "/api/events?since="+future)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"total":0`)

	rec, resp = do(t, s, http.MethodGet, "/api/events/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"total_events":2`)

	rec, resp = do(t, s, http.MethodGet, "/api/events/types")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["BlockChanged","ChunkGenerated"]`, string(resp.Data))
}
