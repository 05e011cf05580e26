package indexdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/transform"
	"structspawn.ai/internal/sim/tuning"
	"structspawn.ai/internal/sim/world"
)

func TestSQLiteIndex_SpawnsAndAudits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	require.NoError(t, err)

	chain := transform.NewChain(transform.Rotation{Turns: 1}, transform.Translation{Offset: geom.V(10, 0, 12)})
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 1, Outcome: "blocked", RequestID: 1, Category: "room", TemplateID: "a", Front: "EAST", Tried: 1}))
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 2, Outcome: "committed", RequestID: 1, Category: "room", TemplateID: "b", Anchor: [3]int{10, 0, 10}, Front: "EAST", Transform: chain, Tried: 2}))
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 3, Outcome: "exhausted", RequestID: 2, Category: "hall", Front: "NORTH"}))
	require.NoError(t, idx.WriteAudit(world.AuditEntry{Tick: 2, Actor: "spawn:1", Action: "SET_BLOCK", Pos: [3]int{10, 0, 10}, To: 1, Reason: "b"}))
	require.NoError(t, idx.WriteAudit(world.AuditEntry{Tick: 2, Actor: "spawn:1", Action: "SET_BLOCK", Pos: [3]int{10, 0, 12}, To: 1, Reason: "b"}))
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	// Writes after close are ignored.
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 9}))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var tpl, transformJSON string
	var x, z int
	row := db.QueryRow(`SELECT template_id, transform_json, x, z FROM spawns WHERE outcome='committed'`)
	require.NoError(t, row.Scan(&tpl, &transformJSON, &x, &z))
	assert.Equal(t, "b", tpl)
	assert.JSONEq(t, `[{"rotate":1},{"move":[10,0,12]}]`, transformJSON)
	assert.Equal(t, 10, x)
	assert.Equal(t, 10, z)

	var audits int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM audits WHERE actor='spawn:1'`).Scan(&audits))
	assert.Equal(t, 2, audits)
}

func TestSQLiteIndex_Queries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	require.NoError(t, err)
	for i, o := range []string{"committed", "blocked", "committed", "dropped"} {
		require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: uint64(i), RequestID: uint64(i), Outcome: o, Category: "c", TemplateID: "t"}))
	}
	require.NoError(t, idx.Close())

	ro, err := OpenSQLite(path)
	require.NoError(t, err)
	defer ro.Close()

	counts, err := ro.OutcomeCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"committed": 2, "blocked": 1, "dropped": 1}, counts)

	recent, err := ro.RecentSpawns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, uint64(2), recent[0].Tick)
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqSpawn}

	_ = s.WriteSpawn(world.SpawnEvent{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})

	st := s.Stats()
	assert.Equal(t, uint64(1), st.DropSpawnTotal)
	assert.Equal(t, uint64(1), st.DropAuditTotal)
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, 1, st.QueueCapacity)
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	cfg := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg, "blocks.json"), []byte(`[{"id":"AIR"},{"id":"STONE","solid":true}]`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg, "templates", "cell.json"), []byte(`{
		"id":"cell","category":"room","spawn_anchor":[0,0,0],"front":"NORTH",
		"blocks":[{"pos":[0,0,0],"block":"STONE"}],
		"placements":[{"pos":[0,0,1],"front":"NORTH","category":"room"}]
	}`), 0o644))
	cats, err := catalogs.Load(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, idx.UpsertCatalogs(cfg, cats, tuning.Defaults()))
	require.NoError(t, idx.UpsertCatalogs(cfg, cats, tuning.Defaults()))
	require.NoError(t, idx.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var names int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&names))
	assert.Equal(t, 4, names)

	var category, front string
	var blocks, placements int
	require.NoError(t, db.QueryRow(`SELECT category, front, blocks, placements FROM templates WHERE id='cell'`).Scan(&category, &front, &blocks, &placements))
	assert.Equal(t, "room", category)
	assert.Equal(t, "NORTH", front)
	assert.Equal(t, 1, blocks)
	assert.Equal(t, 1, placements)
}
