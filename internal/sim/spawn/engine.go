package spawn

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"structspawn.ai/internal/sim/transform"
)

type Config struct {
	Registry   *Registry
	Supplier   Supplier
	Evaluator  Evaluator
	Committer  Committer
	Categories CategoryValidator
	// MaxPending caps the registry at intake; <= 0 disables the cap.
	MaxPending int
	Logger     zerolog.Logger
	// Meter overrides the global OTel meter.
	Meter      metric.Meter
}

// trial is the request currently being serviced and its candidate cursor.
// The cursor survives across ticks.
type trial struct {
	req        Request
	candidates Candidates
	tried      int
}

// Engine is the per-tick spawn state machine. A nil active trial is the idle
// state; otherwise the engine resumes the same candidate sequence each tick.
type Engine struct {
	reg       *Registry
	scheduler *Scheduler
	supplier  Supplier
	evaluator Evaluator
	committer Committer
	log       zerolog.Logger
	metrics   *metrics

	active *trial
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("spawn engine: nil registry")
	}
	if cfg.Supplier == nil || cfg.Evaluator == nil || cfg.Committer == nil {
		return nil, errors.New("spawn engine: supplier, evaluator and committer are required")
	}
	m, err := newMetrics(cfg.Meter, cfg.Registry)
	if err != nil {
		return nil, err
	}
	sched := NewScheduler(cfg.Registry, cfg.Categories, cfg.MaxPending, cfg.Logger)
	sched.withMetrics(m)
	return &Engine{
		reg:       cfg.Registry,
		scheduler: sched,
		supplier:  cfg.Supplier,
		evaluator: cfg.Evaluator,
		committer: cfg.Committer,
		log:       cfg.Logger.With().Str("component", "spawn.engine").Logger(),
		metrics:   m,
	}, nil
}

func (e *Engine) Registry() *Registry { return e.reg }

// Close releases the engine's metric callbacks. It is safe to call more
// than once.
func (e *Engine) Close() error { return e.metrics.close() }

// Schedule runs intake for b. Requests it creates are visible to the next Step.
func (e *Engine) Schedule(tick uint64, b Batch) ScheduleResult {
	return e.scheduler.Schedule(tick, b)
}

// Cancel removes a pending request. If it is the active one, the next Step
// notices and drops the trial.
func (e *Engine) Cancel(id RequestID) bool { return e.reg.Remove(id) }

// Active returns the id of the request under trial, if any.
func (e *Engine) Active() (RequestID, bool) {
	if e.active == nil {
		return 0, false
	}
	return e.active.req.ID, true
}

// Step advances the state machine by one tick. It evaluates at most one
// candidate. Failures are contained to the request they concern.
func (e *Engine) Step(tick uint64) (out Outcome) {
	out.Tick = tick
	if e.active == nil && e.reg.Len() == 0 {
		return out
	}

	// picked is the request chosen this step before its trial exists, so a
	// supplier panic can still drop it.
	var picked *Request
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("spawn step panic: %v", r)
			switch {
			case e.active != nil:
				out.Request = e.active.req
				out.Tried = e.active.tried
				e.reg.Remove(e.active.req.ID)
				e.active = nil
			case picked != nil:
				out.Request = *picked
				out.Tried = 0
				e.reg.Remove(picked.ID)
			}
			e.log.Error().Err(err).Uint64("tick", tick).Uint64("request", uint64(out.Request.ID)).Msg("dropping request")
			out.Kind = OutcomeDropped
			out.Err = err
			e.metrics.outcome(out.Kind)
		}
	}()

	if e.active != nil {
		if _, ok := e.reg.Get(e.active.req.ID); !ok {
			out.Kind = OutcomeDropped
			out.Request = e.active.req
			out.Tried = e.active.tried
			e.active = nil
			e.log.Info().Uint64("tick", tick).Uint64("request", uint64(out.Request.ID)).Msg("active request removed externally")
			e.metrics.outcome(out.Kind)
			return out
		}
	}

	if e.active == nil {
		req, ok := e.reg.Pick()
		if !ok {
			return out
		}
		if err := req.validate(); err != nil {
			e.reg.Remove(req.ID)
			out.Kind = OutcomeDropped
			out.Request = req
			out.Err = err
			e.log.Warn().Err(err).Uint64("tick", tick).Msg("discarding malformed request")
			e.metrics.outcome(out.Kind)
			return out
		}
		picked = &req
		cands := e.supplier.RandomOrder(req.Category)
		if cands == nil {
			cands = FixedOrder()
		}
		e.active = &trial{req: req, candidates: cands}
	}

	t := e.active
	out.Request = t.req

	cand, ok := t.candidates.Next()
	if !ok {
		out.Tried = t.tried
		return e.retire(out, OutcomeExhausted)
	}
	t.tried++
	out.Tried = t.tried
	out.Candidate = cand

	blocked := true
	chain, err := transform.ForConnectionPoint(t.req.Anchor, t.req.Front, cand.Anchor, cand.Front)
	if err != nil {
		out.Err = err
		e.log.Error().
			Err(err).
			Uint64("request", uint64(t.req.ID)).
			Str("template", cand.TemplateID).
			Msg("rejecting candidate with bad connection point")
	} else {
		out.Chain = chain
		e.metrics.trial()
		blocked = e.evaluator.Blocked(cand, chain)
	}

	if !blocked {
		e.committer.CommitSpawn(t.req, cand, chain)
		return e.retire(out, OutcomeCommitted)
	}
	if t.candidates.HasNext() {
		out.Kind = OutcomeBlocked
		e.metrics.outcome(out.Kind)
		return out
	}
	return e.retire(out, OutcomeExhausted)
}

func (e *Engine) retire(out Outcome, kind OutcomeKind) Outcome {
	out.Kind = kind
	e.reg.Remove(e.active.req.ID)
	e.active = nil

	ev := e.log.Debug()
	if kind == OutcomeCommitted {
		ev = e.log.Info()
	}
	ev.Uint64("tick", out.Tick).
		Uint64("request", uint64(out.Request.ID)).
		Str("category", out.Request.Category).
		Str("template", out.Candidate.TemplateID).
		Int("tried", out.Tried).
		Str("outcome", kind.String()).
		Msg("request retired")
	e.metrics.outcome(kind)
	return out
}
