package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/wfc/tiles"
)

// SQLiteIndex is a secondary, queryable index of generation runs. Writes go
// through one goroutine; when it falls behind, records are dropped and
// counted. The JSONL run log remains the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAttempt atomic.Uint64
	dropRun     atomic.Uint64
}

type reqKind int

const (
	reqAttempt reqKind = iota + 1
	reqRun
)

type req struct {
	kind reqKind

	attempt generate.AttemptRecord
	run     generate.RunRecord
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropAttemptTotal uint64 `json:"drop_attempt_total"`
	DropRunTotal     uint64 `json:"drop_run_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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
		ch: make(chan req, 16384),
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
		`CREATE TABLE IF NOT EXISTS corpus (
			digest TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			span INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			examples INTEGER NOT NULL,
			palette_json TEXT NOT NULL,
			groups_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			corpus_digest TEXT NOT NULL,
			shape TEXT NOT NULL,
			ok INTEGER NOT NULL,
			attempt INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT,
			started_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			run_id TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			attempt_seed INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			cell_x INTEGER,
			cell_y INTEGER,
			cell_z INTEGER,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, attempt)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_ok ON attempts(ok, run_id);`,
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

func (s *SQLiteIndex) RecordAttempt(r generate.AttemptRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqAttempt, attempt: r}:
	default:
		s.dropAttempt.Add(1)
	}
}

func (s *SQLiteIndex) RecordRun(r generate.RunRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropAttemptTotal: s.dropAttempt.Load(),
		DropRunTotal:     s.dropRun.Load(),
	}
}

// UpsertCorpus stores the identity of the tile model the runs were made
// against. It writes synchronously.
func (s *SQLiteIndex) UpsertCorpus(dir string, m *tiles.Model) error {
	if s == nil {
		return nil
	}
	palette, err := json.Marshal(m.Tiles())
	if err != nil {
		return err
	}
	groups, err := json.Marshal(m.Groups())
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('corpus_digest',?)`, m.Digest()); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO corpus(digest,dir,span,tiles,examples,palette_json,groups_json,updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		m.Digest(), dir, m.Span(), m.Len(), m.Examples(), string(palette), string(groups), now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAttempt, _ := s.db.Prepare(`INSERT OR REPLACE INTO attempts(run_id,attempt,attempt_seed,ok,cell_x,cell_y,cell_z,error,duration_ms,started_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,seed,corpus_digest,shape,ok,attempt,attempts,duration_ms,error,started_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertAttempt != nil {
			_ = insertAttempt.Close()
		}
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
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

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAttempt:
			a := r.attempt
			var cx, cy, cz sql.NullInt64
			if a.Cell != nil {
				cx = sql.NullInt64{Int64: int64(a.Cell.X), Valid: true}
				cy = sql.NullInt64{Int64: int64(a.Cell.Y), Valid: true}
				cz = sql.NullInt64{Int64: int64(a.Cell.Z), Valid: true}
			}
			if insertAttempt != nil {
				if _, err := tx.Stmt(insertAttempt).Exec(
					a.RunID, a.Attempt, a.AttemptSeed, boolInt(a.OK),
					cx, cy, cz, nullString(a.Error), a.DurationMS, a.StartedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqRun:
			run := r.run
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					run.RunID, run.Seed, run.Digest, run.Shape, boolInt(run.OK),
					run.Attempt, run.Attempts, run.DurationMS, nullString(run.Error), run.StartedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
