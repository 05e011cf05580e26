package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/sim/world"
)

// resumeFromLatest imports the newest snapshot under worldDir, if any. It
// returns the snapshot path it loaded.
func resumeFromLatest(w *world.World, worldDir string) (string, error) {
	p, err := snapshot.Latest(worldDir)
	if err != nil || p == "" {
		return "", err
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		return p, fmt.Errorf("read %s: %w", p, err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return p, err
	}
	return p, nil
}

// writeSnapshots persists snapshots handed over by the world loop until ch
// is drained after ctx ends.
func writeSnapshots(ctx context.Context, worldDir string, ch <-chan snapshot.SnapshotV1, logger zerolog.Logger) {
	write := func(snap snapshot.SnapshotV1) {
		start := time.Now()
		p := snapshot.Path(worldDir, snap.Header.Tick)
		if err := snapshot.WriteSnapshot(p, snap); err != nil {
			logger.Error().Err(err).Str("path", p).Msg("snapshot write failed")
			return
		}
		logger.Info().
			Uint64("tick", snap.Header.Tick).
			Int("chunks", len(snap.Chunks)).
			Int("pending", len(snap.Pending)).
			Dur("took", time.Since(start)).
			Str("path", p).
			Msg("snapshot written")
	}
	for {
		select {
		case snap := <-ch:
			write(snap)
		case <-ctx.Done():
			for {
				select {
				case snap := <-ch:
					write(snap)
				default:
					return
				}
			}
		}
	}
}
