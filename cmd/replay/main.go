package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"structspawn.ai/internal/persistence/indexdb"
	persistlog "structspawn.ai/internal/persistence/log"
	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/encoding"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/world"
)

func main() {
	var (
		worldDir  = flag.String("world_dir", "", "world data dir containing spawns/ and audit/")
		configDir = flag.String("configs", "./configs", "config directory")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		reindex   = flag.String("reindex", "", "rebuild a sqlite index at this path from the logs (optional)")
		snapPath  = flag.String("snapshot", "", "start from this .snap.zst instead of an empty world (optional)")
	)
	flag.Parse()

	if *worldDir == "" {
		fmt.Fprintln(os.Stderr, "missing -world_dir")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	var idx *indexdb.SQLiteIndex
	if *reindex != "" {
		idx, err = indexdb.OpenSQLite(*reindex)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
	}

	var base *snapshot.SnapshotV1
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot world=%s tick=%d chunks=%d pending=%d\n",
			snap.Header.WorldID, snap.Header.Tick, len(snap.Chunks), len(snap.Pending))
		base = &snap
	}

	sum, err := replay(*worldDir, cats.Blocks.Index["AIR"], base, *toTick, idx)
	if idx != nil {
		if st := idx.Stats(); st.DropSpawnTotal+st.DropAuditTotal > 0 {
			fmt.Fprintf(os.Stderr, "reindex dropped spawns=%d audits=%d (writer queue full)\n", st.DropSpawnTotal, st.DropAuditTotal)
		}
		if cerr := idx.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	fmt.Printf("spawns=%d audits=%d last_tick=%d chunks=%d digest=%s\n",
		sum.Spawns, sum.Audits, sum.LastTick, sum.Chunks, sum.Digest)
	outcomes := make([]string, 0, len(sum.Outcomes))
	for k := range sum.Outcomes {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	for _, k := range outcomes {
		fmt.Printf("  %-10s %d\n", k, sum.Outcomes[k])
	}
	for id, n := range sum.Blocks {
		if int(id) < len(cats.Blocks.Palette) {
			fmt.Printf("  block %-12s %d\n", cats.Blocks.Palette[id], n)
		}
	}
	if sum.Mismatches > 0 {
		fmt.Fprintf(os.Stderr, "audit chain broken: %d entries whose from does not match the replayed block\n", sum.Mismatches)
		os.Exit(1)
	}
}

type summary struct {
	Spawns     int
	Audits     int
	LastTick   uint64
	Outcomes   map[string]int
	Blocks     map[uint16]int // non-air blocks written, by palette id
	Chunks     int
	Digest     string
	Mismatches int
}

// replay rebuilds block state from the audit log and tallies spawn outcomes.
// With a base snapshot, entries older than the snapshot tick are skipped.
// Every audit entry's From must equal the block the replay holds at that
// position, so a gap or reordering in the logs shows up as a mismatch.
func replay(worldDir string, air uint16, base *snapshot.SnapshotV1, toTick uint64, idx *indexdb.SQLiteIndex) (summary, error) {
	sum := summary{Outcomes: map[string]int{}, Blocks: map[uint16]int{}}
	var fromTick uint64
	store := world.NewBlockStore(air)
	if base != nil {
		fromTick = base.Header.Tick
		for _, c := range base.Chunks {
			ids, err := encoding.DecodeRLE(c.RLE, 16*16*16)
			if err != nil {
				return sum, fmt.Errorf("snapshot chunk (%d,%d,%d): %w", c.CX, c.CY, c.CZ, err)
			}
			for _, id := range ids {
				if id != air {
					sum.Blocks[id]++
				}
			}
			if err := store.LoadChunk(world.ChunkKey{CX: c.CX, CY: c.CY, CZ: c.CZ}, ids); err != nil {
				return sum, err
			}
		}
	}
	within := func(tick uint64) bool { return tick >= fromTick && (toTick == 0 || tick <= toTick) }

	err := persistlog.ReadSpawns(worldDir, func(ev world.SpawnEvent) error {
		if !within(ev.Tick) {
			return nil
		}
		sum.Spawns++
		sum.Outcomes[ev.Outcome]++
		if ev.Tick > sum.LastTick {
			sum.LastTick = ev.Tick
		}
		if idx != nil {
			return idx.WriteSpawn(ev)
		}
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("spawns: %w", err)
	}

	err = persistlog.ReadAudits(worldDir, func(a world.AuditEntry) error {
		if !within(a.Tick) {
			return nil
		}
		sum.Audits++
		if a.Action != "SET_BLOCK" {
			return nil
		}
		prev := store.Set(geom.FromArray(a.Pos), a.To)
		if prev != a.From {
			sum.Mismatches++
		}
		if prev != air {
			sum.Blocks[prev]--
		}
		if a.To != air {
			sum.Blocks[a.To]++
		}
		if idx != nil {
			return idx.WriteAudit(a)
		}
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("audits: %w", err)
	}
	for id, n := range sum.Blocks {
		if n == 0 {
			delete(sum.Blocks, id)
		}
	}
	sum.Chunks = len(store.LoadedChunkKeys())
	sum.Digest = store.Digest()
	return sum, nil
}
