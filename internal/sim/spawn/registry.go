package spawn

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Policy selects which pending request becomes active next.
type Policy uint8

const (
	// PolicyFIFO services the oldest request first.
	PolicyFIFO Policy = iota
	// PolicyStack services the most recently added request first.
	PolicyStack
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fifo":
		return PolicyFIFO, nil
	case "stack", "lifo":
		return PolicyStack, nil
	}
	return PolicyFIFO, fmt.Errorf("unknown registry policy %q", s)
}

func (p Policy) String() string {
	if p == PolicyStack {
		return "stack"
	}
	return "fifo"
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Registry owns every pending request. Records are only mutated through its
// methods.
type Registry struct {
	policy Policy
	nextID RequestID

	order []RequestID
	byID  map[RequestID]Request

	// size mirrors len(byID) for readers outside the world goroutine.
	size atomic.Int64
}

func NewRegistry(policy Policy) *Registry {
	return &Registry{
		policy: policy,
		byID:   map[RequestID]Request{},
	}
}

func (r *Registry) Policy() Policy { return r.policy }

// Add stores req under a fresh id and returns it. Any id set on req is
// ignored.
func (r *Registry) Add(req Request) RequestID {
	r.nextID++
	req.ID = r.nextID
	r.byID[req.ID] = req
	r.order = append(r.order, req.ID)
	r.size.Add(1)
	return req.ID
}

// Restore re-inserts a request under its recorded id, appending it to the
// selection order. Later Adds continue after the highest id seen.
func (r *Registry) Restore(req Request) error {
	if req.ID == 0 {
		return fmt.Errorf("restore: zero request id")
	}
	if _, dup := r.byID[req.ID]; dup {
		return fmt.Errorf("restore: duplicate request id %d", req.ID)
	}
	r.byID[req.ID] = req
	r.order = append(r.order, req.ID)
	if req.ID > r.nextID {
		r.nextID = req.ID
	}
	r.size.Add(1)
	return nil
}

// NextID reports the last id handed out. The next Add uses NextID()+1.
func (r *Registry) NextID() RequestID { return r.nextID }

// SetNextID raises the id counter so retired ids are not reused after a
// restore. It never lowers the counter.
func (r *Registry) SetNextID(id RequestID) {
	if id > r.nextID {
		r.nextID = id
	}
}

// Remove drops a request. It reports whether the request was present.
func (r *Registry) Remove(id RequestID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.size.Add(-1)
	return true
}

func (r *Registry) Get(id RequestID) (Request, bool) {
	req, ok := r.byID[id]
	return req, ok
}

// Pick returns the request the policy selects next without removing it.
func (r *Registry) Pick() (Request, bool) {
	if len(r.order) == 0 {
		return Request{}, false
	}
	id := r.order[0]
	if r.policy == PolicyStack {
		id = r.order[len(r.order)-1]
	}
	return r.byID[id], true
}

func (r *Registry) Len() int { return len(r.byID) }

// Size is safe to call from any goroutine.
func (r *Registry) Size() int64 { return r.size.Load() }

// List returns the pending requests in insertion order.
func (r *Registry) List() []Request {
	out := make([]Request, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
