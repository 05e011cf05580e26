package catalogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/sim/geom"
)

const corridor = `{
  "id":"corridor_straight",
  "category":"corridor",
  "spawn_anchor":[0,0,0],
  "front":"SOUTH",
  "blocks":[{"pos":[0,0,0],"block":"PLANK"},{"pos":[0,0,1],"block":"PLANK"},{"pos":[0,0,2],"block":"PLANK"}],
  "conditions":{"require_air":true,"require_ground":true},
  "placements":[{"pos":[0,0,3],"front":"NORTH","category":"room"}]
}`

const room = `{
  "id":"room_small",
  "category":"room",
  "spawn_anchor":[1,0,0],
  "front":"south",
  "blocks":[{"pos":[0,0,0],"block":"STONE"},{"pos":[2,1,2],"block":"STONE"}],
  "conditions":{"require_air":true}
}`

func TestLoad_BlocksAndTemplates(t *testing.T) {
	dir := writeConfigs(t, map[string]string{"corridor.json": corridor, "room.json": room, "notes.txt": "ignored"})
	cats, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"AIR", "PLANK", "STONE"}, cats.Blocks.Palette)
	assert.EqualValues(t, 0, cats.Blocks.Index["AIR"])
	assert.NotEmpty(t, cats.Blocks.PaletteDigest)
	assert.NotEmpty(t, cats.Templates.Digest)

	require.Len(t, cats.Templates.ByID, 2)
	assert.True(t, cats.HasCategory("corridor"))
	assert.True(t, cats.HasCategory("room"))
	assert.False(t, cats.HasCategory("tower"))

	c, ok := cats.Template("corridor_straight")
	require.True(t, ok)
	assert.Equal(t, geom.South, c.Front)
	assert.True(t, c.Conditions.RequireGround)
	require.Len(t, c.Placements, 1)
	assert.Equal(t, geom.North, c.Placements[0].Front)

	r, _ := cats.Template("room_small")
	b := r.Bounds()
	assert.Equal(t, geom.V(0, 0, 0), b.Min)
	assert.Equal(t, geom.V(2, 1, 2), b.Max)
}

func TestLoad_MissingTemplatesDirIsEmptyCatalog(t *testing.T) {
	cats, err := Load(writeConfigs(t, nil))
	require.NoError(t, err)
	assert.Empty(t, cats.Templates.ByID)
	assert.False(t, cats.HasCategory("room"))
}

func TestLoad_RejectsBadTemplates(t *testing.T) {
	cases := map[string]string{
		"no id":         `{"category":"x","front":"NORTH"}`,
		"no category":   `{"id":"x","front":"NORTH"}`,
		"vertical":      `{"id":"x","category":"x","front":"UP"}`,
		"missing front": `{"id":"x","category":"x"}`,
		"unknown block": `{"id":"x","category":"x","front":"EAST","blocks":[{"pos":[0,0,0],"block":"GOLD"}]}`,
		"bad placement": `{"id":"x","category":"x","front":"EAST","placements":[{"pos":[0,0,0],"front":"DOWN","category":"y"}]}`,
	}
	for name, body := range cases {
		_, err := Load(writeConfigs(t, map[string]string{"t.json": body}))
		assert.Error(t, err, name)
	}
}

func TestLoad_RequiresAir(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err)
}
