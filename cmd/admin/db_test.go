package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/persistence/indexdb"
	"structspawn.ai/internal/sim/world"
)

func seedIndex(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 1, Outcome: "blocked", RequestID: 1, Category: "room", Front: "SOUTH", Tried: 1}))
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 2, Outcome: "committed", RequestID: 1, Category: "room", Front: "SOUTH", TemplateID: "room_small", Tried: 2}))
	require.NoError(t, idx.WriteSpawn(world.SpawnEvent{Tick: 3, Outcome: "exhausted", RequestID: 2, Category: "corridor", Front: "EAST", Tried: 3}))
	require.NoError(t, idx.WriteAudit(world.AuditEntry{Tick: 2, Actor: "spawn:1", Action: "SET_BLOCK", Pos: [3]int{4, 0, 4}, To: 3, Reason: "room_small"}))
	require.NoError(t, idx.WriteAudit(world.AuditEntry{Tick: 2, Actor: "spawn:1", Action: "SET_BLOCK", Pos: [3]int{5, 0, 4}, To: 3, Reason: "room_small"}))
	require.NoError(t, idx.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func lines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestRunQuery_Outcomes(t *testing.T) {
	db := seedIndex(t)
	var buf bytes.Buffer
	require.NoError(t, runQuery(db, "outcomes", dbOpts{}, &buf))
	assert.Equal(t, []string{
		`{"outcome":"blocked","count":1}`,
		`{"outcome":"committed","count":1}`,
		`{"outcome":"exhausted","count":1}`,
	}, lines(&buf))
}

func TestRunQuery_SpawnsFilters(t *testing.T) {
	db := seedIndex(t)

	var buf bytes.Buffer
	require.NoError(t, runQuery(db, "spawns", dbOpts{Limit: 2}, &buf))
	got := lines(&buf)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"tick":3`)

	buf.Reset()
	require.NoError(t, runQuery(db, "spawns", dbOpts{Outcome: "committed"}, &buf))
	got = lines(&buf)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `"template_id":"room_small"`)

	buf.Reset()
	require.NoError(t, runQuery(db, "request", dbOpts{RequestID: 1}, &buf))
	got = lines(&buf)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"outcome":"blocked"`)
	assert.Contains(t, got[1], `"outcome":"committed"`)

	assert.Error(t, runQuery(db, "request", dbOpts{}, &buf))
}

func TestRunQuery_Audits(t *testing.T) {
	db := seedIndex(t)
	var buf bytes.Buffer
	require.NoError(t, runQuery(db, "audits", dbOpts{Actor: "spawn:1"}, &buf))
	got := lines(&buf)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"pos":[5,0,4]`)

	buf.Reset()
	require.NoError(t, runQuery(db, "audits", dbOpts{Actor: "spawn:9"}, &buf))
	assert.Empty(t, lines(&buf))
}

func TestRunQuery_Unknown(t *testing.T) {
	db := seedIndex(t)
	assert.Error(t, runQuery(db, "agents", dbOpts{}, &bytes.Buffer{}))
}
