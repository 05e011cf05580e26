package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// SpawnRow is one indexed spawn step.
type SpawnRow struct {
	Tick       uint64 `json:"tick"`
	RequestID  uint64 `json:"request_id"`
	Outcome    string `json:"outcome"`
	Category   string `json:"category"`
	TemplateID string `json:"template_id,omitempty"`
	Pos        [3]int `json:"pos"`
	Tried      int    `json:"tried"`
	Depth      int    `json:"depth"`
}

// OutcomeCounts tallies indexed spawn steps by outcome.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM spawns GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// RecentSpawns returns the newest committed spawns first.
func (s *SQLiteIndex) RecentSpawns(ctx context.Context, limit int) ([]SpawnRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, request_id, outcome, category, template_id, x, y, z, tried, depth
		FROM spawns WHERE outcome = 'committed'
		ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query spawns: %w", err)
	}
	defer rows.Close()

	var out []SpawnRow
	for rows.Next() {
		var r SpawnRow
		var tpl sql.NullString
		if err := rows.Scan(&r.Tick, &r.RequestID, &r.Outcome, &r.Category, &tpl, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Tried, &r.Depth); err != nil {
			return nil, err
		}
		r.TemplateID = tpl.String
		out = append(out, r)
	}
	return out, rows.Err()
}
