package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	persistlog "structspawn.ai/internal/persistence/log"
	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/sim/encoding"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/world"
)

func writeLogs(t *testing.T, dir string, spawns []world.SpawnEvent, audits []world.AuditEntry) {
	t.Helper()
	sl := persistlog.NewSpawnLogger(dir)
	for _, ev := range spawns {
		require.NoError(t, sl.WriteSpawn(ev))
	}
	require.NoError(t, sl.Close())
	al := persistlog.NewAuditLogger(dir)
	for _, a := range audits {
		require.NoError(t, al.WriteAudit(a))
	}
	require.NoError(t, al.Close())
}

func TestReplay_RebuildsBlocks(t *testing.T) {
	dir := t.TempDir()
	writeLogs(t, dir,
		[]world.SpawnEvent{
			{Tick: 1, Outcome: "blocked", RequestID: 1},
			{Tick: 2, Outcome: "committed", RequestID: 1, TemplateID: "room_small"},
		},
		[]world.AuditEntry{
			{Tick: 2, Actor: "spawn:1", Action: "SET_BLOCK", Pos: [3]int{0, 0, 0}, From: 0, To: 3},
			{Tick: 2, Actor: "spawn:1", Action: "SET_BLOCK", Pos: [3]int{20, 0, 0}, From: 0, To: 3},
		})

	sum, err := replay(dir, 0, nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Spawns)
	assert.Equal(t, 2, sum.Audits)
	assert.EqualValues(t, 2, sum.LastTick)
	assert.Equal(t, map[string]int{"blocked": 1, "committed": 1}, sum.Outcomes)
	assert.Equal(t, map[uint16]int{3: 2}, sum.Blocks)
	assert.Equal(t, 2, sum.Chunks)
	assert.Zero(t, sum.Mismatches)

	want := world.NewBlockStore(0)
	want.Set(geom.V(0, 0, 0), 3)
	want.Set(geom.V(20, 0, 0), 3)
	assert.Equal(t, want.Digest(), sum.Digest)
}

func TestReplay_DetectsBrokenChain(t *testing.T) {
	dir := t.TempDir()
	writeLogs(t, dir, nil, []world.AuditEntry{
		{Tick: 1, Action: "SET_BLOCK", Pos: [3]int{1, 1, 1}, From: 2, To: 3},
	})
	sum, err := replay(dir, 0, nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Mismatches)
}

func TestReplay_StopsAtTick(t *testing.T) {
	dir := t.TempDir()
	writeLogs(t, dir,
		[]world.SpawnEvent{{Tick: 1, Outcome: "committed"}, {Tick: 9, Outcome: "committed"}},
		[]world.AuditEntry{
			{Tick: 1, Action: "SET_BLOCK", Pos: [3]int{0, 0, 0}, To: 1},
			{Tick: 9, Action: "SET_BLOCK", Pos: [3]int{0, 0, 0}, From: 1, To: 0},
		})
	sum, err := replay(dir, 0, nil, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Spawns)
	assert.Equal(t, map[uint16]int{1: 1}, sum.Blocks)
}

func TestReplay_FromSnapshot(t *testing.T) {
	ids := make([]uint16, 16*16*16)
	ids[0] = 2
	base := &snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, Tick: 10},
		Chunks: []snapshot.ChunkV1{{RLE: encoding.EncodeRLE(ids)}},
	}
	dir := t.TempDir()
	writeLogs(t, dir, nil, []world.AuditEntry{
		// Already in the snapshot.
		{Tick: 3, Action: "SET_BLOCK", Pos: [3]int{0, 0, 0}, From: 0, To: 2},
		{Tick: 10, Action: "SET_BLOCK", Pos: [3]int{1, 0, 0}, From: 0, To: 2},
	})
	sum, err := replay(dir, 0, base, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Audits)
	assert.Zero(t, sum.Mismatches)
	assert.Equal(t, map[uint16]int{2: 2}, sum.Blocks)
	assert.Equal(t, 1, sum.Chunks)
}
