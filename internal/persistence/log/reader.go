package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"structspawn.ai/internal/sim/world"
)

// ReadJSONL decodes every line of a .jsonl.zst file, calling fn for each.
// fn returning an error stops the scan.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	return sc.Err()
}

// Files lists the rotated files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadSpawns replays every spawn log under worldDir in order.
func ReadSpawns(worldDir string, fn func(world.SpawnEvent) error) error {
	files, err := Files(filepath.Join(worldDir, "spawns"), "spawns")
	if err != nil {
		return err
	}
	for _, p := range files {
		err := ReadJSONL(p, func(b []byte) error {
			var ev world.SpawnEvent
			if err := json.Unmarshal(b, &ev); err != nil {
				return err
			}
			return fn(ev)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadAudits replays every audit log under worldDir in order.
func ReadAudits(worldDir string, fn func(world.AuditEntry) error) error {
	files, err := Files(filepath.Join(worldDir, "audit"), "audit")
	if err != nil {
		return err
	}
	for _, p := range files {
		err := ReadJSONL(p, func(b []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(b, &e); err != nil {
				return err
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
