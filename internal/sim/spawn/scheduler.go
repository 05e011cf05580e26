package spawn

import (
	"github.com/rs/zerolog"
)

// ScheduleResult reports how a batch was taken in.
type ScheduleResult struct {
	Scheduled []RequestID
	Skipped   int
	// SkippedCategory and SkippedQueueFull split Skipped by reason.
	SkippedCategory  int
	SkippedQueueFull int
}

// Scheduler turns schedule-placement batches into pending requests.
type Scheduler struct {
	reg        *Registry
	categories CategoryValidator
	maxPending int
	log        zerolog.Logger
	metrics    *metrics
}

// NewScheduler creates the intake side. maxPending <= 0 means no limit.
func NewScheduler(reg *Registry, categories CategoryValidator, maxPending int, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		reg:        reg,
		categories: categories,
		maxPending: maxPending,
		log:        logger.With().Str("component", "spawn.scheduler").Logger(),
	}
}

func (s *Scheduler) withMetrics(m *metrics) { s.metrics = m }

// Schedule registers one request per valid placement of b. A bad placement is logged
// and skipped; the rest of the batch still goes through.
func (s *Scheduler) Schedule(tick uint64, b Batch) ScheduleResult {
	var res ScheduleResult
	for i, p := range b.Placements {
		if p.Category == "" || (s.categories != nil && !s.categories.HasCategory(p.Category)) {
			s.log.Warn().
				Str("source", b.Source).
				Int("index", i).
				Str("category", p.Category).
				Err(ErrUnknownCategory).
				Msg("skipping placement")
			s.metrics.skip("category")
			res.Skipped++
			res.SkippedCategory++
			continue
		}
		if s.maxPending > 0 && s.reg.Len() >= s.maxPending {
			s.log.Warn().
				Str("source", b.Source).
				Int("index", i).
				Int("max_pending", s.maxPending).
				Err(ErrQueueFull).
				Msg("skipping placement")
			s.metrics.skip("queue_full")
			res.Skipped++
			res.SkippedQueueFull++
			continue
		}
		id := s.reg.Add(Request{
			Anchor:   b.Chain.Pos(p.Anchor),
			Front:    b.Chain.Side(p.Front),
			Category: p.Category,
			Source:   b.Source,
			Tick:     tick,
		})
		res.Scheduled = append(res.Scheduled, id)
	}
	if len(res.Scheduled) > 0 {
		s.log.Debug().
			Str("source", b.Source).
			Int("scheduled", len(res.Scheduled)).
			Int("skipped", res.Skipped).
			Int("pending", s.reg.Len()).
			Msg("batch scheduled")
	}
	return res
}
