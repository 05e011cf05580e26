package world

import (
	"context"
	"time"

	"structspawn.ai/internal/sim/spawn"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingSchedules []ScheduleRequest
	var pendingCancels []cancelReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.schedule:
			pendingSchedules = append(pendingSchedules, req)
		case req := <-w.cancel:
			pendingCancels = append(pendingCancels, req)
		case req := <-w.snapshotReq:
			tick, err := w.emitSnapshot()
			req.Resp <- snapshotResp{Tick: tick, Err: err}
		case <-ticker.C:
			w.step(pendingSchedules, pendingCancels)
			pendingSchedules = pendingSchedules[:0]
			pendingCancels = pendingCancels[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Close stops the loop and releases the engine's metric callbacks. Call it
// once Run has returned.
func (w *World) Close() error {
	w.Stop()
	return w.engine.Close()
}

// StepOnce advances the world by a single tick using the same ordering as
// the loop. It is intended for tests and offline drivers.
func (w *World) StepOnce(batches ...spawn.Batch) (tick uint64, out spawn.Outcome) {
	tick = w.tick.Load()
	reqs := make([]ScheduleRequest, 0, len(batches))
	for _, b := range batches {
		reqs = append(reqs, ScheduleRequest{Batch: b})
	}
	return tick, w.step(reqs, nil)
}

// step order: intake, cancellations, one engine step, commits, events.
func (w *World) step(schedules []ScheduleRequest, cancels []cancelReq) spawn.Outcome {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	for _, req := range schedules {
		res := w.intake(nowTick, req.Batch, 0)
		if req.Resp != nil {
			req.Resp <- res
		}
	}
	for _, req := range cancels {
		w.handleCancel(req)
	}

	out := w.engine.Step(nowTick)
	w.applyCommits(nowTick)

	if out.Kind != spawn.OutcomeIdle {
		w.publish(newSpawnEvent(out, w.depth[out.Request.ID]))
		w.stats.observe(out.Kind)
		if out.Kind.Retired() {
			delete(w.depth, out.Request.ID)
		}
	}

	w.publishMetrics(nowTick, time.Since(stepStart))
	next := w.tick.Add(1)
	if every := uint64(w.cfg.SnapshotEveryTicks); every > 0 && w.snapshotSink != nil && next%every == 0 {
		if _, err := w.emitSnapshot(); err != nil {
			w.log.Warn().Err(err).Uint64("tick", next).Msg("periodic snapshot skipped")
		}
	}
	return out
}
