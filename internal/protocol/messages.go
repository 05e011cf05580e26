package protocol

import (
	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/transform"
)

// SCHEDULE (client -> server)
type ScheduleMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id,omitempty"`
	Transform       transform.Chain `json:"transform"`
	Placements      []PlacementMsg  `json:"placements"`
}

type PlacementMsg struct {
	Pos      [3]int    `json:"pos"`
	Front    geom.Side `json:"front"`
	Category string    `json:"category"`
}

// Batch converts the message into a spawn batch attributed to source.
func (m ScheduleMsg) Batch(source string) spawn.Batch {
	specs := make([]spawn.PlacementSpec, 0, len(m.Placements))
	for _, p := range m.Placements {
		specs = append(specs, spawn.PlacementSpec{
			Anchor:   geom.FromArray(p.Pos),
			Front:    p.Front,
			Category: p.Category,
		})
	}
	return spawn.Batch{Chain: m.Transform, Placements: specs, Source: source}
}

// CANCEL (client -> server)
type CancelMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	RequestIDs      []uint64 `json:"request_ids"`
}

// ACK (server -> client) answers SCHEDULE and CANCEL.
type AckMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	AckFor          string   `json:"ack_for,omitempty"`
	Accepted        bool     `json:"accepted"`
	Scheduled       []uint64 `json:"scheduled,omitempty"`
	Cancelled       []uint64 `json:"cancelled,omitempty"`
	Skipped         int      `json:"skipped,omitempty"`
	Code            string   `json:"code,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// SPAWN (server -> client) streams every non-idle engine step.
type SpawnMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	WorldID         string          `json:"world_id,omitempty"`
	Tick            uint64          `json:"tick"`
	Outcome         string          `json:"outcome"`
	RequestID       uint64          `json:"request_id"`
	Category        string          `json:"category"`
	Anchor          [3]int          `json:"anchor"`
	Front           string          `json:"front"`
	TemplateID      string          `json:"template_id,omitempty"`
	Transform       transform.Chain `json:"transform"`
	Tried           int             `json:"tried"`
	Depth           int             `json:"depth"`
	Error           string          `json:"error,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
