package catalogs

import (
	"math/rand/v2"

	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/mathx"
	"structspawn.ai/internal/sim/spawn"
)

// Supplier hands out the templates of a category in random order. Each call
// gets its own stream derived from the world seed and a draw counter, so a
// replay with the same seed and schedule sees the same orders.
type Supplier struct {
	cats  *Catalogs
	seed  int64
	draws uint64
}

func NewSupplier(cats *Catalogs, seed int64) *Supplier {
	return &Supplier{cats: cats, seed: seed}
}

// Draws is the number of orders handed out so far.
func (s *Supplier) Draws() uint64 { return s.draws }

// SetDraws resumes the draw counter, e.g. from a snapshot.
func (s *Supplier) SetDraws(n uint64) { s.draws = n }

func (s *Supplier) RandomOrder(category string) spawn.Candidates {
	s.draws++
	ids := s.cats.Templates.ByCategory[category]
	src := rand.NewPCG(mathx.Hash2(s.seed, int(s.draws), len(ids)), s.draws)
	return &shuffled{
		cats: s.cats,
		ids:  append([]string(nil), ids...),
		rng:  rand.New(src),
	}
}

// shuffled is an incremental Fisher-Yates shuffle: each Next swaps one random
// remaining id into place.
type shuffled struct {
	cats *Catalogs
	ids  []string
	next int
	rng  *rand.Rand
}

func (it *shuffled) Next() (spawn.Candidate, bool) {
	for it.next < len(it.ids) {
		j := it.next + it.rng.IntN(len(it.ids)-it.next)
		it.ids[it.next], it.ids[j] = it.ids[j], it.ids[it.next]
		id := it.ids[it.next]
		it.next++

		t, ok := it.cats.Templates.ByID[id]
		if !ok {
			continue
		}
		return spawn.Candidate{
			TemplateID: t.ID,
			Anchor:     geom.FromArray(t.SpawnAnchor),
			Front:      t.Front,
		}, true
	}
	return spawn.Candidate{}, false
}

func (it *shuffled) HasNext() bool { return it.next < len(it.ids) }
