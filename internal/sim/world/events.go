package world

import (
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/transform"
)

// SpawnEvent reports one non-idle engine step.
type SpawnEvent struct {
	Tick       uint64          `json:"tick"`
	Outcome    string          `json:"outcome"`
	RequestID  uint64          `json:"request_id"`
	Category   string          `json:"category"`
	Source     string          `json:"source,omitempty"`
	Anchor     [3]int          `json:"anchor"`
	Front      string          `json:"front"`
	TemplateID string          `json:"template_id,omitempty"`
	Transform  transform.Chain `json:"transform"`
	Tried      int             `json:"tried"`
	Depth      int             `json:"depth"`
	Error      string          `json:"error,omitempty"`
}

type SpawnLogger interface {
	WriteSpawn(ev SpawnEvent) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK"
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Reason string `json:"reason,omitempty"`
}

func newSpawnEvent(out spawn.Outcome, depth int) SpawnEvent {
	ev := SpawnEvent{
		Tick:       out.Tick,
		Outcome:    out.Kind.String(),
		RequestID:  uint64(out.Request.ID),
		Category:   out.Request.Category,
		Source:     out.Request.Source,
		Anchor:     out.Request.Anchor.ToArray(),
		Front:      out.Request.Front.String(),
		TemplateID: out.Candidate.TemplateID,
		Transform:  out.Chain,
		Tried:      out.Tried,
		Depth:      depth,
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	return ev
}

// Subscribe registers a spawn event listener. Events are dropped for a
// subscriber whose buffer is full. The returned func unsubscribes and closes
// the channel.
func (w *World) Subscribe(buffer int) (<-chan SpawnEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan SpawnEvent, buffer)
	w.subsMu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.subsMu.Unlock()

	return ch, func() {
		w.subsMu.Lock()
		defer w.subsMu.Unlock()
		if c, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(c)
		}
	}
}

func (w *World) publish(ev SpawnEvent) {
	if w.spawnLogger != nil {
		if err := w.spawnLogger.WriteSpawn(ev); err != nil {
			w.log.Warn().Err(err).Msg("spawn log write failed")
		}
	}
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (w *World) auditSetBlock(tick uint64, actor string, pos [3]int, from, to uint16, reason string) {
	if w.auditLogger == nil {
		return
	}
	err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:   tick,
		Actor:  actor,
		Action: "SET_BLOCK",
		Pos:    pos,
		From:   from,
		To:     to,
		Reason: reason,
	})
	if err != nil {
		w.log.Warn().Err(err).Msg("audit write failed")
	}
}
