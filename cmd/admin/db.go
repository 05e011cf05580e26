package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbOpts struct {
	Limit     int
	Outcome   string
	Category  string
	Actor     string
	RequestID uint64
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	var o dbOpts
	fs.IntVar(&o.Limit, "limit", 20, "result limit")
	fs.StringVar(&o.Outcome, "outcome", "", "outcome filter (spawns)")
	fs.StringVar(&o.Category, "category", "", "category filter (spawns, templates)")
	fs.StringVar(&o.Actor, "actor", "", "actor filter (audits)")
	fs.Uint64Var(&o.RequestID, "request", 0, "request id (request)")
	_ = fs.Parse(args)

	q := "outcomes"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runQuery prints one JSON object per row.
func runQuery(db *sql.DB, q string, o dbOpts, out io.Writer) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	switch q {
	case "outcomes":
		rows, err := db.Query(`SELECT outcome, COUNT(*) FROM spawns GROUP BY outcome ORDER BY outcome`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Outcome string `json:"outcome"`
				Count   int    `json:"count"`
			}
			if err := rows.Scan(&r.Outcome, &r.Count); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "spawns", "request":
		query := `SELECT tick,request_id,outcome,category,COALESCE(template_id,''),COALESCE(source,''),x,y,z,front,tried,depth,transform_json,COALESCE(error,'') FROM spawns`
		var (
			where []string
			args  []any
		)
		if q == "request" {
			if o.RequestID == 0 {
				return fmt.Errorf("missing -request")
			}
			where = append(where, "request_id=?")
			args = append(args, o.RequestID)
		}
		if o.Outcome != "" {
			where = append(where, "outcome=?")
			args = append(args, o.Outcome)
		}
		if o.Category != "" {
			where = append(where, "category=?")
			args = append(args, o.Category)
		}
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		if q == "request" {
			query += " ORDER BY tick ASC"
		} else {
			query += " ORDER BY tick DESC, request_id DESC"
		}
		query += " LIMIT ?"
		args = append(args, o.Limit)

		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       uint64          `json:"tick"`
				RequestID  uint64          `json:"request_id"`
				Outcome    string          `json:"outcome"`
				Category   string          `json:"category"`
				TemplateID string          `json:"template_id,omitempty"`
				Source     string          `json:"source,omitempty"`
				Anchor     [3]int          `json:"anchor"`
				Front      string          `json:"front"`
				Tried      int             `json:"tried"`
				Depth      int             `json:"depth"`
				Transform  json.RawMessage `json:"transform"`
				Error      string          `json:"error,omitempty"`
			}
			var tf string
			if err := rows.Scan(&r.Tick, &r.RequestID, &r.Outcome, &r.Category, &r.TemplateID, &r.Source,
				&r.Anchor[0], &r.Anchor[1], &r.Anchor[2], &r.Front, &r.Tried, &r.Depth, &tf, &r.Error); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Transform = json.RawMessage(tf)
			printJSON(out, r)
		}
		return rows.Err()

	case "audits":
		query := `SELECT tick,seq,actor,action,x,y,z,from_block,to_block,COALESCE(reason,'') FROM audits`
		var args []any
		if o.Actor != "" {
			query += " WHERE actor=?"
			args = append(args, o.Actor)
		}
		query += " ORDER BY tick DESC, seq DESC LIMIT ?"
		args = append(args, o.Limit)
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   uint64 `json:"tick"`
				Seq    int    `json:"seq"`
				Actor  string `json:"actor"`
				Action string `json:"action"`
				Pos    [3]int `json:"pos"`
				From   int    `json:"from"`
				To     int    `json:"to"`
				Reason string `json:"reason,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.From, &r.To, &r.Reason); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "templates":
		query := `SELECT id,category,front,blocks,placements FROM templates`
		var args []any
		if o.Category != "" {
			query += " WHERE category=?"
			args = append(args, o.Category)
		}
		query += " ORDER BY category, id"
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ID         string `json:"id"`
				Category   string `json:"category"`
				Front      string `json:"front"`
				Blocks     int    `json:"blocks"`
				Placements int    `json:"placements"`
			}
			if err := rows.Scan(&r.ID, &r.Category, &r.Front, &r.Blocks, &r.Placements); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s (want outcomes|spawns|request|audits|templates|catalogs)", q)
	}
}

func printJSON(out io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(out, string(b))
}
