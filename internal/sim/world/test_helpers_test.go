package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/transform"
)

const testBlocks = `[
  {"id":"AIR","solid":false},
  {"id":"STONE","solid":true},
  {"id":"PLANK","solid":true}
]`

const (
	tplPlatform = `{
  "id":"platform","category":"floor","spawn_anchor":[0,0,0],"front":"NORTH",
  "blocks":[{"pos":[0,0,0],"block":"STONE"},{"pos":[1,0,0],"block":"STONE"}],
  "conditions":{"require_air":true}
}`
	tplPillar = `{
  "id":"pillar","category":"pillar","spawn_anchor":[0,0,0],"front":"NORTH",
  "blocks":[{"pos":[0,0,0],"block":"STONE"},{"pos":[0,1,0],"block":"STONE"}],
  "conditions":{"require_air":true,"require_ground":true}
}`
	tplCorridor = `{
  "id":"corridor","category":"corridor","spawn_anchor":[0,0,0],"front":"SOUTH",
  "blocks":[{"pos":[0,0,0],"block":"PLANK"},{"pos":[0,0,1],"block":"PLANK"},{"pos":[0,0,2],"block":"PLANK"}],
  "conditions":{"require_air":true},
  "placements":[{"pos":[0,0,3],"front":"SOUTH","category":"corridor"}]
}`
	tplArch = `{
  "id":"arch","category":"arch","spawn_anchor":[2,0,0],"front":"NORTH",
  "blocks":[{"pos":[0,0,0],"block":"STONE"},{"pos":[2,0,0],"block":"STONE"}]
}`
	tplBoxA = `{
  "id":"box_a","category":"box","spawn_anchor":[0,0,0],"front":"NORTH",
  "blocks":[{"pos":[0,0,0],"block":"STONE"}],
  "conditions":{"require_air":true}
}`
	tplBoxB = `{
  "id":"box_b","category":"box","spawn_anchor":[0,0,0],"front":"NORTH",
  "blocks":[{"pos":[0,0,0],"block":"PLANK"}],
  "conditions":{"require_air":true}
}`
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(testBlocks), 0o644))
	td := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(td, 0o755))
	for name, body := range map[string]string{
		"platform.json": tplPlatform,
		"pillar.json":   tplPillar,
		"corridor.json": tplCorridor,
		"arch.json":     tplArch,
		"box_a.json":    tplBoxA,
		"box_b.json":    tplBoxB,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(td, name), []byte(body), 0o644))
	}
	cats, err := catalogs.Load(dir)
	require.NoError(t, err)
	return cats
}

func newTestWorld(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	w, err := New(cfg, testCatalogs(t), zerolog.Nop())
	require.NoError(t, err)
	return w
}

func block(t *testing.T, w *World, id string) uint16 {
	t.Helper()
	v, ok := w.Catalogs().Blocks.Index[id]
	require.True(t, ok, id)
	return v
}

func place(anchor geom.Vec3i, front geom.Side, category string) spawn.Batch {
	return spawn.Batch{
		Chain:      transform.NewChain(),
		Placements: []spawn.PlacementSpec{{Anchor: anchor, Front: front, Category: category}},
		Source:     "test",
	}
}

type spawnSink struct{ events []SpawnEvent }

func (s *spawnSink) WriteSpawn(ev SpawnEvent) error {
	s.events = append(s.events, ev)
	return nil
}

type auditSink struct{ entries []AuditEntry }

func (s *auditSink) WriteAudit(e AuditEntry) error {
	s.entries = append(s.entries, e)
	return nil
}
