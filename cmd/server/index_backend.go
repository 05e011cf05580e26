package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"structspawn.ai/internal/persistence/indexdb"
	"structspawn.ai/internal/sim/world"
)

func openRuntimeIndex(worldDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported SS_INDEX_BACKEND: %s", backend)
	}
}

// nilSafeSpawn avoids storing a typed nil pointer in the interface.
func nilSafeSpawn(idx *indexdb.SQLiteIndex) world.SpawnLogger {
	if idx == nil {
		return nil
	}
	return idx
}

func nilSafeAudit(idx *indexdb.SQLiteIndex) world.AuditLogger {
	if idx == nil {
		return nil
	}
	return idx
}

type multiSpawnLogger struct {
	a world.SpawnLogger
	b world.SpawnLogger
}

func (m multiSpawnLogger) WriteSpawn(ev world.SpawnEvent) error {
	if m.a != nil {
		_ = m.a.WriteSpawn(ev)
	}
	if m.b != nil {
		_ = m.b.WriteSpawn(ev)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
