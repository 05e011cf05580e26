package catalogs

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/sim/spawn"
)

func manyRooms(n int) map[string]string {
	out := map[string]string{}
	for i := 0; i < n; i++ {
		out[fmt.Sprintf("room_%02d.json", i)] = fmt.Sprintf(
			`{"id":"room_%02d","category":"room","spawn_anchor":[%d,0,0],"front":"NORTH"}`, i, i)
	}
	return out
}

func drain(c spawn.Candidates) []string {
	var ids []string
	for {
		cand, ok := c.Next()
		if !ok {
			return ids
		}
		ids = append(ids, cand.TemplateID)
	}
}

func TestSupplier_YieldsEveryTemplateOnce(t *testing.T) {
	cats, err := Load(writeConfigs(t, manyRooms(8)))
	require.NoError(t, err)
	s := NewSupplier(cats, 42)

	it := s.RandomOrder("room")
	require.True(t, it.HasNext())
	ids := drain(it)
	assert.False(t, it.HasNext())

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, cats.Templates.ByCategory["room"], sorted)
}

func TestSupplier_CandidateCarriesConnectionPoint(t *testing.T) {
	cats, err := Load(writeConfigs(t, manyRooms(1)))
	require.NoError(t, err)
	c, ok := NewSupplier(cats, 1).RandomOrder("room").Next()
	require.True(t, ok)
	assert.Equal(t, "room_00", c.TemplateID)
	assert.Equal(t, "NORTH", c.Front.String())
}

func TestSupplier_DeterministicPerSeed(t *testing.T) {
	cats, err := Load(writeConfigs(t, manyRooms(10)))
	require.NoError(t, err)

	a := NewSupplier(cats, 7)
	b := NewSupplier(cats, 7)
	for i := 0; i < 3; i++ {
		assert.Equal(t, drain(a.RandomOrder("room")), drain(b.RandomOrder("room")))
	}
}

func TestSupplier_UnknownCategoryIsEmpty(t *testing.T) {
	cats, err := Load(writeConfigs(t, manyRooms(2)))
	require.NoError(t, err)
	it := NewSupplier(cats, 1).RandomOrder("tower")
	assert.False(t, it.HasNext())
	_, ok := it.Next()
	assert.False(t, ok)
}
