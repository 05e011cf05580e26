package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"structspawn.ai/internal/sim/catalogs"
	"structspawn.ai/internal/sim/tuning"
	"structspawn.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the spawn and audit logs. Writes
// are queued to a single writer goroutine and dropped if it falls behind;
// the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSpawn atomic.Uint64
	dropAudit atomic.Uint64
}

type reqKind int

const (
	reqSpawn reqKind = iota + 1
	reqAudit
)

type req struct {
	kind reqKind

	spawn world.SpawnEvent
	audit world.AuditEntry
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropSpawnTotal uint64 `json:"drop_spawn_total"`
	DropAuditTotal uint64 `json:"drop_audit_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 262144)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			front TEXT NOT NULL,
			blocks INTEGER NOT NULL,
			placements INTEGER NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category);`,
		`CREATE TABLE IF NOT EXISTS spawns (
			tick INTEGER NOT NULL,
			request_id INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			category TEXT NOT NULL,
			template_id TEXT,
			source TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			front TEXT NOT NULL,
			tried INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			transform_json TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (tick, request_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spawns_request ON spawns(request_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_spawns_outcome_tick ON spawns(outcome, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block INTEGER NOT NULL,
			to_block INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropSpawnTotal: s.dropSpawn.Load(),
		DropAuditTotal: s.dropAudit.Load(),
	}
}

func (s *SQLiteIndex) WriteSpawn(ev world.SpawnEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqSpawn, spawn: ev}:
	default:
		s.dropSpawn.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// UpsertCatalogs records the block palette, every template and the applied
// tuning, keyed by digest.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}

	tpls := make([]catalogs.TemplateDef, 0, len(cats.Templates.ByID))
	for _, t := range cats.Templates.ByID {
		tpls = append(tpls, t)
	}
	sort.Slice(tpls, func(i, j int) bool { return tpls[i].ID < tpls[j].ID })
	if b, _ := json.Marshal(tpls); len(b) > 0 {
		rows = append(rows, kv{name: "templates", digest: cats.Templates.Digest, json: b})
	}

	// Tuning: store the values we actually apply (canonical JSON).
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM templates`); err != nil {
		return err
	}
	tstmt, err := tx.Prepare(`INSERT INTO templates(id,category,front,blocks,placements,json) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer tstmt.Close()
	for _, t := range tpls {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
		if _, err := tstmt.Exec(t.ID, t.Category, t.Front.String(), len(t.Blocks), len(t.Placements), string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSpawn, _ := s.db.Prepare(`INSERT OR REPLACE INTO spawns(tick,request_id,outcome,category,template_id,source,x,y,z,front,tried,depth,transform_json,error) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,from_block,to_block,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertSpawn != nil {
			_ = insertSpawn.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	// The connection pool holds one connection, so an idle open transaction
	// would block readers; the ticker commits it once it is old enough.
	flushTick := time.NewTicker(commitMaxWait / 4)
	defer flushTick.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-flushTick.C:
			flushIfNeeded()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSpawn:
			ev := r.spawn
			chain, _ := json.Marshal(ev.Transform)
			if insertSpawn != nil {
				if _, err := tx.Stmt(insertSpawn).Exec(
					int64(ev.Tick),
					int64(ev.RequestID),
					ev.Outcome,
					ev.Category,
					ev.TemplateID,
					ev.Source,
					ev.Anchor[0], ev.Anchor[1], ev.Anchor[2],
					ev.Front,
					ev.Tried,
					ev.Depth,
					string(chain),
					ev.Error,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.Pos[0], a.Pos[1], a.Pos[2],
					int64(a.From),
					int64(a.To),
					a.Reason,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}
}
