package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"structspawn.ai/internal/sim/spawn"
)

type Tuning struct {
	WorldID    string `yaml:"world_id"`
	TickRateHz int    `yaml:"tick_rate_hz"`
	Seed       int64  `yaml:"seed"`
	// BoundaryR limits spawns to |x|,|z| <= BoundaryR. 0 means unbounded.
	BoundaryR int `yaml:"boundary_r"`
	// SnapshotEveryTicks writes a world snapshot every N ticks. 0 disables.
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Spawn Spawn `yaml:"spawn"`
	Log   Log   `yaml:"log"`
}

type Spawn struct {
	// Policy picks the next pending request: "fifo" or "stack".
	Policy     spawn.Policy `yaml:"policy"`
	MaxPending int          `yaml:"max_pending"`
	// ScheduleBuffer is the capacity of the world's incoming batch channel.
	ScheduleBuffer int `yaml:"schedule_buffer"`
	// MaxDepth limits how many generations of follow-up placements a
	// committed template may schedule. 0 disables follow-ups.
	MaxDepth int `yaml:"max_depth"`
}

type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:    "world_1",
		TickRateHz: 20,
		Seed:       1337,

		SnapshotEveryTicks: 3000,
		Spawn: Spawn{
			Policy:         spawn.PolicyFIFO,
			MaxPending:     4096,
			ScheduleBuffer: 256,
			MaxDepth:       8,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a tuning file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.WorldID = strings.TrimSpace(t.WorldID)
	if t.WorldID == "" {
		t.WorldID = "world_1"
	}
	if t.Spawn.ScheduleBuffer <= 0 {
		t.Spawn.ScheduleBuffer = 256
	}
	t.Log.Level = strings.ToLower(strings.TrimSpace(t.Log.Level))
	if t.Log.Level == "" {
		t.Log.Level = "info"
	}
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	if t.BoundaryR < 0 {
		return fmt.Errorf("boundary_r must be >= 0")
	}
	if t.Spawn.MaxPending < 0 {
		return fmt.Errorf("spawn.max_pending must be >= 0")
	}
	if t.Spawn.MaxDepth < 0 {
		return fmt.Errorf("spawn.max_depth must be >= 0")
	}
	switch t.Log.Level {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("log.level: unknown level %q", t.Log.Level)
	}
	return nil
}
