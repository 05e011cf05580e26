package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"structspawn.ai/internal/persistence/snapshot"
	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/transform"
)

var ErrStopped = errors.New("world stopped")

// ScheduleRequest carries a batch into the world loop. Resp, if non-nil,
// receives the intake result on the tick the batch is taken in. It should
// be buffered.
type ScheduleRequest struct {
	Batch spawn.Batch
	Resp  chan spawn.ScheduleResult
}

type cancelReq struct {
	ID   spawn.RequestID
	Resp chan bool
}

type pendingCommit struct {
	req   spawn.Request
	cand  spawn.Candidate
	chain transform.Chain
}

// World is a single-threaded authoritative block world that grows
// structures through the spawn engine.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      zerolog.Logger

	tick atomic.Uint64

	blocks   *BlockStore
	engine   *spawn.Engine
	supplier *catalogs.Supplier

	// depth of each pending request; externally scheduled batches are depth 0.
	depth   map[spawn.RequestID]int
	commits []pendingCommit

	schedule    chan ScheduleRequest
	cancel      chan cancelReq
	snapshotReq chan snapshotReq
	stop        chan struct{}
	stopOnce    sync.Once

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	spawnLogger  SpawnLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	subsMu  sync.Mutex
	subs    map[int]chan SpawnEvent
	nextSub int

	stats   counters
	metrics atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, logger zerolog.Logger) (*World, error) {
	if cats == nil {
		return nil, errors.New("world: nil catalogs")
	}
	cfg.applyDefaults()
	air, ok := cats.Blocks.Index["AIR"]
	if !ok {
		return nil, fmt.Errorf("missing block id in palette: %s", "AIR")
	}

	w := &World{
		cfg:         cfg,
		catalogs:    cats,
		log:         logger.With().Str("world", cfg.ID).Logger(),
		blocks:      NewBlockStore(air),
		depth:       map[spawn.RequestID]int{},
		schedule:    make(chan ScheduleRequest, cfg.ScheduleBuffer),
		cancel:      make(chan cancelReq, 16),
		snapshotReq: make(chan snapshotReq, 4),
		stop:        make(chan struct{}),
		subs:        map[int]chan SpawnEvent{},
		supplier:    catalogs.NewSupplier(cats, cfg.Seed),
	}
	engine, err := spawn.NewEngine(spawn.Config{
		Registry:   spawn.NewRegistry(cfg.Policy),
		Supplier:   w.supplier,
		Evaluator:  spawn.EvaluatorFunc(w.blocked),
		Committer:  spawn.CommitterFunc(w.queueCommit),
		Categories: cats,
		MaxPending: cfg.MaxPending,
		Logger:     w.log,
	})
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	w.engine = engine
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }

// Schedule returns the channel the world loop drains at every tick.
func (w *World) Schedule() chan<- ScheduleRequest { return w.schedule }

// Submit queues b for the next tick and waits for its intake result.
func (w *World) Submit(ctx context.Context, b spawn.Batch) (spawn.ScheduleResult, error) {
	resp := make(chan spawn.ScheduleResult, 1)
	select {
	case w.schedule <- ScheduleRequest{Batch: b, Resp: resp}:
	case <-ctx.Done():
		return spawn.ScheduleResult{}, ctx.Err()
	case <-w.stop:
		return spawn.ScheduleResult{}, ErrStopped
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return spawn.ScheduleResult{}, ctx.Err()
	case <-w.stop:
		return spawn.ScheduleResult{}, ErrStopped
	}
}

// Cancel removes a pending request at the next tick boundary.
func (w *World) Cancel(ctx context.Context, id spawn.RequestID) (bool, error) {
	resp := make(chan bool, 1)
	select {
	case w.cancel <- cancelReq{ID: id, Resp: resp}:
	case <-ctx.Done():
		return false, ctx.Err()
	case <-w.stop:
		return false, ErrStopped
	}
	select {
	case ok := <-resp:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-w.stop:
		return false, ErrStopped
	}
}

func (w *World) SetSpawnLogger(l SpawnLogger) { w.spawnLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

// BlockAt reads the block store. Only safe from the world loop goroutine or
// while the loop is not running.
func (w *World) BlockAt(x, y, z int) uint16 {
	return w.blocks.Get(geom.V(x, y, z))
}

func (w *World) Blocks() *BlockStore { return w.blocks }

func (w *World) intake(tick uint64, b spawn.Batch, depth int) spawn.ScheduleResult {
	res := w.engine.Schedule(tick, b)
	for _, id := range res.Scheduled {
		w.depth[id] = depth
	}
	return res
}

func (w *World) handleCancel(req cancelReq) {
	ok := w.engine.Cancel(req.ID)
	if ok {
		delete(w.depth, req.ID)
		w.log.Info().Uint64("request", uint64(req.ID)).Msg("request cancelled")
	}
	if req.Resp != nil {
		req.Resp <- ok
	}
}
