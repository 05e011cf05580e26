package world

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/sim/encoding"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
)

var (
	ErrNoSnapshotSink = errors.New("snapshot sink not configured")
	ErrSnapshotBusy   = errors.New("snapshot sink full")
)

type snapshotReq struct {
	Resp chan snapshotResp
}

type snapshotResp struct {
	Tick uint64
	Err  error
}

// SetSnapshotSink sets where the loop hands finished snapshots. Writing them
// to disk is the receiver's job.
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// RequestSnapshot asks the world loop goroutine to export a snapshot to the
// sink between ticks and returns the snapshot tick.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResp, 1)
	select {
	case w.snapshotReq <- snapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-w.stop:
		return 0, ErrStopped
	}
	select {
	case r := <-resp:
		return r.Tick, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-w.stop:
		return 0, ErrStopped
	}
}

func (w *World) emitSnapshot() (uint64, error) {
	if w.snapshotSink == nil {
		return 0, ErrNoSnapshotSink
	}
	snap := w.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
		return snap.Header.Tick, nil
	default:
		return 0, ErrSnapshotBusy
	}
}

// ExportSnapshot captures blocks and pending requests. Only safe from the
// world loop goroutine or while the loop is not running.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		Seed:            w.cfg.Seed,
		TickRate:        w.cfg.TickRateHz,
		BoundaryR:       w.cfg.BoundaryR,
		Policy:          w.cfg.Policy.String(),
		MaxPending:      w.cfg.MaxPending,
		MaxDepth:        w.cfg.MaxDepth,
		Palette:         slices.Clone(w.catalogs.Blocks.Palette),
		TemplatesDigest: w.catalogs.Templates.Digest,
		NextID:          uint64(w.engine.Registry().NextID()),
		SupplierDraws:   w.supplier.Draws(),
	}
	for _, k := range w.blocks.LoadedChunkKeys() {
		s.Chunks = append(s.Chunks, snapshot.ChunkV1{
			CX:  k.CX,
			CY:  k.CY,
			CZ:  k.CZ,
			RLE: encoding.EncodeRLE(w.blocks.chunks[k].Blocks),
		})
	}
	for _, req := range w.engine.Registry().List() {
		s.Pending = append(s.Pending, snapshot.RequestV1{
			ID:       uint64(req.ID),
			Anchor:   req.Anchor.ToArray(),
			Front:    req.Front.String(),
			Category: req.Category,
			Source:   req.Source,
			Tick:     req.Tick,
			Depth:    w.depth[req.ID],
		})
	}
	return s
}

// ImportSnapshot loads a snapshot into a world that has not run yet.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if w.tick.Load() != 0 || w.engine.Registry().Len() != 0 || len(w.blocks.chunks) != 0 {
		return fmt.Errorf("import snapshot: world already has state")
	}
	if !slices.Equal(s.Palette, w.catalogs.Blocks.Palette) {
		return fmt.Errorf("import snapshot: block palette differs from catalog")
	}
	if s.TemplatesDigest != w.catalogs.Templates.Digest {
		w.log.Warn().Str("snapshot", s.TemplatesDigest).Str("catalog", w.catalogs.Templates.Digest).Msg("template catalog changed since snapshot")
	}
	if s.Seed != w.cfg.Seed {
		w.log.Warn().Int64("snapshot", s.Seed).Int64("config", w.cfg.Seed).Msg("seed differs from snapshot")
	}

	blocks := NewBlockStore(w.blocks.air)
	for _, c := range s.Chunks {
		ids, err := encoding.DecodeRLE(c.RLE, chunkSize*chunkSize*chunkSize)
		if err != nil {
			return fmt.Errorf("import snapshot: chunk (%d,%d,%d): %w", c.CX, c.CY, c.CZ, err)
		}
		for _, id := range ids {
			if int(id) >= len(s.Palette) {
				return fmt.Errorf("import snapshot: chunk (%d,%d,%d): block id %d out of palette", c.CX, c.CY, c.CZ, id)
			}
		}
		if err := blocks.LoadChunk(ChunkKey{CX: c.CX, CY: c.CY, CZ: c.CZ}, ids); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}

	reg := spawn.NewRegistry(w.engine.Registry().Policy())
	depth := map[spawn.RequestID]int{}
	for _, r := range s.Pending {
		front, err := geom.ParseSide(r.Front)
		if err != nil {
			return fmt.Errorf("import snapshot: request %d: %w", r.ID, err)
		}
		req := spawn.Request{
			ID:       spawn.RequestID(r.ID),
			Anchor:   geom.FromArray(r.Anchor),
			Front:    front,
			Category: r.Category,
			Source:   r.Source,
			Tick:     r.Tick,
		}
		if err := reg.Restore(req); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		depth[req.ID] = r.Depth
	}
	for _, req := range reg.List() {
		if err := w.engine.Registry().Restore(req); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}

	w.engine.Registry().SetNextID(spawn.RequestID(s.NextID))
	w.supplier.SetDraws(s.SupplierDraws)
	w.blocks = blocks
	w.depth = depth
	w.tick.Store(s.Header.Tick)
	w.log.Info().
		Uint64("tick", s.Header.Tick).
		Int("chunks", len(s.Chunks)).
		Int("pending", len(s.Pending)).
		Msg("snapshot imported")
	return nil
}
