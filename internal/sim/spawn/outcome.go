package spawn

import "structspawn.ai/internal/sim/transform"

type OutcomeKind uint8

const (
	// OutcomeIdle: nothing pending, nothing done.
	OutcomeIdle OutcomeKind = iota
	// OutcomeBlocked: one candidate was rejected, more remain.
	OutcomeBlocked
	// OutcomeCommitted: a candidate was accepted and the request retired.
	OutcomeCommitted
	// OutcomeExhausted: no candidate was accepted; the request retired without a spawn.
	OutcomeExhausted
	// OutcomeDropped: the request was missing or malformed and was discarded.
	OutcomeDropped
)

var outcomeNames = [...]string{
	OutcomeIdle:      "idle",
	OutcomeBlocked:   "blocked",
	OutcomeCommitted: "committed",
	OutcomeExhausted: "exhausted",
	OutcomeDropped:   "dropped",
}

func (k OutcomeKind) String() string {
	if int(k) < len(outcomeNames) {
		return outcomeNames[k]
	}
	return "unknown"
}

// Retired reports whether the step ended the life of its request.
func (k OutcomeKind) Retired() bool {
	return k == OutcomeCommitted || k == OutcomeExhausted || k == OutcomeDropped
}

// Outcome describes what one engine step did.
type Outcome struct {
	Tick    uint64
	Kind    OutcomeKind
	Request Request
	// Candidate and Chain are set when a candidate was drawn this step.
	Candidate Candidate
	Chain     transform.Chain
	// Tried counts candidates drawn for the request so far.
	Tried int
	Err   error
}
