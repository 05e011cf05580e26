// Package spawn turns placement requests into committed structure spawns.
//
// Requests are queued by the Scheduler and serviced by the Engine, which tries
// at most one candidate template per tick. The engine is single-threaded: all
// methods must be called from the world loop goroutine.
package spawn

import (
	"fmt"

	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/transform"
)

type RequestID uint64

// PlacementSpec asks for a structure of Category to connect at Anchor facing
// Front, in the coordinates of the batch it belongs to.
type PlacementSpec struct {
	Anchor   geom.Vec3i
	Front    geom.Side
	Category string
}

// Batch is a schedule-placement message. Chain maps every placement into world
// space.
type Batch struct {
	Chain      transform.Chain
	Placements []PlacementSpec
	// Source is free text identifying who scheduled the batch (client id,
	// parent template). It is carried into outcomes for auditing.
	Source string
}

// Request is a pending spawn with a resolved world anchor and front.
type Request struct {
	ID       RequestID
	Anchor   geom.Vec3i
	Front    geom.Side
	Category string
	Source   string
	// Tick is the world tick the request was scheduled on.
	Tick uint64
}

func (r Request) validate() error {
	if r.Category == "" {
		return fmt.Errorf("request %d: %w", r.ID, ErrUnknownCategory)
	}
	if !r.Front.Horizontal() {
		return fmt.Errorf("request %d: front %s: %w", r.ID, r.Front, geom.ErrNotHorizontal)
	}
	return nil
}

// Candidate is one concrete template of a category together with its
// incoming connection point.
type Candidate struct {
	TemplateID string
	Anchor     geom.Vec3i
	Front      geom.Side
}

// Candidates is a finite, lazily advanced sequence.
type Candidates interface {
	Next() (Candidate, bool)
	HasNext() bool
}

// Supplier yields the templates of a category in random order.
type Supplier interface {
	RandomOrder(category string) Candidates
}

// Evaluator reports whether spawning c through chain is currently blocked.
// It must answer synchronously.
type Evaluator interface {
	Blocked(c Candidate, chain transform.Chain) bool
}

// Committer materializes an accepted candidate. The engine does not wait for
// or verify the result.
type Committer interface {
	CommitSpawn(req Request, c Candidate, chain transform.Chain)
}

// CategoryValidator tells the Scheduler which categories exist.
type CategoryValidator interface {
	HasCategory(category string) bool
}

type EvaluatorFunc func(c Candidate, chain transform.Chain) bool

func (f EvaluatorFunc) Blocked(c Candidate, chain transform.Chain) bool { return f(c, chain) }

type CommitterFunc func(req Request, c Candidate, chain transform.Chain)

func (f CommitterFunc) CommitSpawn(req Request, c Candidate, chain transform.Chain) { f(req, c, chain) }

// FixedOrder returns the candidates in the given order.
func FixedOrder(cands ...Candidate) Candidates {
	return &fixedOrder{cands: cands}
}

type fixedOrder struct {
	cands []Candidate
	next  int
}

func (f *fixedOrder) Next() (Candidate, bool) {
	if f.next >= len(f.cands) {
		return Candidate{}, false
	}
	c := f.cands[f.next]
	f.next++
	return c, true
}

func (f *fixedOrder) HasNext() bool { return f.next < len(f.cands) }
