package world

import (
	"sync/atomic"
	"time"

	"structspawn.ai/internal/sim/spawn"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Pending       int    `json:"pending"`
	ActiveRequest uint64 `json:"active_request,omitempty"`
	LoadedChunks  int    `json:"loaded_chunks"`
	QueueDepth    int    `json:"queue_depth"`

	Blocked   uint64 `json:"blocked_total"`
	Committed uint64 `json:"committed_total"`
	Exhausted uint64 `json:"exhausted_total"`
	Dropped   uint64 `json:"dropped_total"`

	StepMS float64 `json:"step_ms"`
}

type counters struct {
	blocked, committed, exhausted, dropped atomic.Uint64
}

func (c *counters) observe(k spawn.OutcomeKind) {
	switch k {
	case spawn.OutcomeBlocked:
		c.blocked.Add(1)
	case spawn.OutcomeCommitted:
		c.committed.Add(1)
	case spawn.OutcomeExhausted:
		c.exhausted.Add(1)
	case spawn.OutcomeDropped:
		c.dropped.Add(1)
	}
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, ok := w.metrics.Load().(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(tick uint64, took time.Duration) {
	m := WorldMetrics{
		Tick:         tick,
		Pending:      w.engine.Registry().Len(),
		LoadedChunks: len(w.blocks.chunks),
		QueueDepth:   len(w.schedule),
		Blocked:      w.stats.blocked.Load(),
		Committed:    w.stats.committed.Load(),
		Exhausted:    w.stats.exhausted.Load(),
		Dropped:      w.stats.dropped.Load(),
		StepMS:       float64(took.Microseconds()) / 1000,
	}
	if id, ok := w.engine.Active(); ok {
		m.ActiveRequest = uint64(id)
	}
	w.metrics.Store(m)
}
