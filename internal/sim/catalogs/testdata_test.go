package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBlocks = `[
  {"id":"AIR","solid":false},
  {"id":"STONE","solid":true},
  {"id":"PLANK","solid":true}
]`

// writeConfigs lays out a config dir with blocks.json and the given templates.
func writeConfigs(t *testing.T, templates map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(testBlocks), 0o644))
	if templates != nil {
		td := filepath.Join(dir, "templates")
		require.NoError(t, os.MkdirAll(td, 0o755))
		for name, body := range templates {
			require.NoError(t, os.WriteFile(filepath.Join(td, name), []byte(body), 0o644))
		}
	}
	return dir
}
