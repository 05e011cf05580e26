package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/transform"
	"structspawn.ai/internal/sim/world"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	ts := time.Date(2024, 1, 2, 3, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return ts }

	require.NoError(t, w.Write(map[string]int{"n": 1}))
	require.NoError(t, w.Write(map[string]int{"n": 2}))
	ts = ts.Add(2 * time.Minute)
	require.NoError(t, w.Write(map[string]int{"n": 3}))
	require.NoError(t, w.Close())

	files, err := Files(dir, "x")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "x-2024-01-02-03.jsonl.zst"),
		filepath.Join(dir, "x-2024-01-02-04.jsonl.zst"),
	}, files)

	var lines []string
	for _, f := range files {
		require.NoError(t, ReadJSONL(f, func(b []byte) error {
			lines = append(lines, string(b))
			return nil
		}))
	}
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, lines)
}

func TestSpawnAndAuditLoggers_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sl := NewSpawnLogger(dir)
	al := NewAuditLogger(dir)

	ev := world.SpawnEvent{
		Tick:       7,
		Outcome:    "committed",
		RequestID:  3,
		Category:   "room",
		Anchor:     [3]int{10, 0, 10},
		Front:      "EAST",
		TemplateID: "room_small",
		Transform: transform.NewChain(
			transform.Rotation{Turns: 1},
			transform.Translation{Offset: geom.V(10, 0, 12)},
		),
		Tried: 2,
	}
	require.NoError(t, sl.WriteSpawn(ev))
	require.NoError(t, al.WriteAudit(world.AuditEntry{Tick: 7, Actor: "spawn:3", Action: "SET_BLOCK", Pos: [3]int{10, 0, 10}, To: 2}))
	require.NoError(t, sl.Close())
	require.NoError(t, al.Close())

	var spawns []world.SpawnEvent
	require.NoError(t, ReadSpawns(dir, func(e world.SpawnEvent) error {
		spawns = append(spawns, e)
		return nil
	}))
	require.Len(t, spawns, 1)
	assert.Equal(t, ev.TemplateID, spawns[0].TemplateID)
	assert.Equal(t, ev.Transform.String(), spawns[0].Transform.String())
	assert.Equal(t, geom.V(10, 0, 10), spawns[0].Transform.Pos(geom.V(2, 0, 0)))

	var audits []world.AuditEntry
	require.NoError(t, ReadAudits(dir, func(e world.AuditEntry) error {
		audits = append(audits, e)
		return nil
	}))
	require.Len(t, audits, 1)
	assert.Equal(t, "spawn:3", audits[0].Actor)
}

func TestReadSpawns_EmptyDir(t *testing.T) {
	n := 0
	require.NoError(t, ReadSpawns(t.TempDir(), func(world.SpawnEvent) error { n++; return nil }))
	assert.Zero(t, n)
}
