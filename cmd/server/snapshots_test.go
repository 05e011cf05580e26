package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
)

func TestSnapshots_WriteAndResume(t *testing.T) {
	dir := t.TempDir()
	src := newTestWorld(t)
	src.StepOnce(spawn.Batch{Placements: []spawn.PlacementSpec{
		{Anchor: geom.V(0, 0, 0), Front: geom.South, Category: "tower"},
		{Anchor: geom.V(5, 0, 5), Front: geom.South, Category: "room"},
	}})

	ch := make(chan snapshot.SnapshotV1, 1)
	ch <- src.ExportSnapshot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	writeSnapshots(ctx, dir, ch, zerolog.Nop())

	dst := newTestWorld(t)
	p, err := resumeFromLatest(dst, dir)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Path(dir, 1), p)
	assert.Equal(t, src.Blocks().Digest(), dst.Blocks().Digest())
	assert.Equal(t, src.CurrentTick(), dst.CurrentTick())

	// Nothing to resume from.
	fresh := newTestWorld(t)
	p, err = resumeFromLatest(fresh, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestMux_AdminSnapshot(t *testing.T) {
	w := newTestWorld(t)
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		w.Stop()
		<-done
	}()

	mux := newMux(w, nil, muxOptions{Admin: true})

	rec := serve(mux, "/admin/v1/snapshot", "127.0.0.1:1")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.Len(t, sink, 1)
}
