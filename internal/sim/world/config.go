package world

import "structspawn.ai/internal/sim/spawn"

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64
	// BoundaryR limits spawns to |x|,|z| <= BoundaryR. 0 means unbounded.
	BoundaryR int

	Policy spawn.Policy
	// MaxPending caps the spawn registry; <= 0 disables the cap.
	MaxPending     int
	ScheduleBuffer int
	// MaxDepth is how many generations of follow-up placements a committed
	// template may schedule. 0 disables follow-ups.
	MaxDepth int
	// SnapshotEveryTicks emits a snapshot to the sink every N ticks. 0
	// disables periodic snapshots.
	SnapshotEveryTicks int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.ScheduleBuffer <= 0 {
		c.ScheduleBuffer = 256
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
	if c.BoundaryR < 0 {
		c.BoundaryR = 0
	}
}
