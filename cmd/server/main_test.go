package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/persistence/indexdb"
	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	require.NoError(t, err)
	w, err := world.New(world.WorldConfig{ID: "w_test", Seed: 7}, cats, zerolog.Nop())
	require.NoError(t, err)
	return w
}

func serve(mux *http.ServeMux, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestMux_HealthAndMetrics(t *testing.T) {
	w := newTestWorld(t)
	w.StepOnce(spawn.Batch{Placements: []spawn.PlacementSpec{
		{Anchor: geom.V(0, 0, 0), Front: geom.South, Category: "room"},
	}})
	mux := newMux(w, nil, muxOptions{})

	rec := serve(mux, "/healthz", "10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(mux, "/metrics", "10.0.0.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `structspawn_world_tick{world="w_test"} 1`)
	assert.Contains(t, body, `structspawn_spawn_outcomes_total{world="w_test",outcome="committed"} 1`)
	assert.NotContains(t, body, "structspawn_index_queue_depth")

	// Admin routes are not mounted unless enabled.
	rec = serve(mux, "/admin/v1/state", "127.0.0.1:5000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMux_AdminState(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, muxOptions{Admin: true})

	rec := serve(mux, "/admin/v1/state", "192.168.1.4:5000")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(mux, "/admin/v1/state", "127.0.0.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		WorldID string `json:"world_id"`
		Index   any    `json:"index"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "w_test", got.WorldID)
	assert.Nil(t, got.Index)

	rec = serve(mux, "/admin/v1/spawns", "[::1]:5000")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMux_AdminSpawnsFromIndex(t *testing.T) {
	idx, err := indexdb.OpenSQLite(t.TempDir() + "/world.sqlite")
	require.NoError(t, err)
	defer idx.Close()

	w := newTestWorld(t)
	mux := newMux(w, idx, muxOptions{Admin: true})

	rec := serve(mux, "/admin/v1/spawns?limit=5", "127.0.0.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got, "outcomes")
	assert.Contains(t, got, "recent")

	rec = serve(mux, "/metrics", "127.0.0.1:5000")
	assert.Contains(t, rec.Body.String(), "structspawn_index_queue_depth 0")
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:80"))
	assert.True(t, isLoopbackRemote("[::1]:80"))
	assert.True(t, isLoopbackRemote("::1"))
	assert.False(t, isLoopbackRemote("8.8.8.8:53"))
	assert.False(t, isLoopbackRemote("not-an-ip"))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SS_TEST_FLAG", "")
	assert.True(t, envBool("SS_TEST_FLAG", true))
	t.Setenv("SS_TEST_FLAG", "false")
	assert.False(t, envBool("SS_TEST_FLAG", true))
	t.Setenv("SS_TEST_FLAG", "maybe")
	assert.True(t, envBool("SS_TEST_FLAG", true))
}

func TestOpenRuntimeIndex(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	require.NoError(t, err)
	assert.Nil(t, idx)

	t.Setenv("SS_INDEX_BACKEND", "off")
	idx, err = openRuntimeIndex(t.TempDir(), false)
	require.NoError(t, err)
	assert.Nil(t, idx)

	t.Setenv("SS_INDEX_BACKEND", "postgres")
	_, err = openRuntimeIndex(t.TempDir(), false)
	assert.Error(t, err)

	t.Setenv("SS_INDEX_BACKEND", "sqlite")
	idx, err = openRuntimeIndex(t.TempDir(), false)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.NoError(t, idx.Close())
}
