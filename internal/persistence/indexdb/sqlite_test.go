package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/tiles"
)

func TestSQLiteIndex_RecordsRunsAndAttempts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cell := geom.Coord{X: 3, Y: 1, Z: 4}
	idx.RecordAttempt(generate.AttemptRecord{RunID: "run_1", Seed: 42, Attempt: 0, AttemptSeed: 42, Cell: &cell, Error: "solver: contradiction at (3,1,4)", DurationMS: 2})
	idx.RecordAttempt(generate.AttemptRecord{RunID: "run_1", Seed: 42, Attempt: 1, AttemptSeed: 9001, OK: true, DurationMS: 3})
	idx.RecordRun(generate.RunRecord{RunID: "run_1", Seed: 42, Digest: "abc", Shape: "12x3x12", OK: true, Attempt: 1, Attempts: 2, DurationMS: 5})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		seed     int64
		digest   string
		ok       int
		attempts int
	)
	row := db.QueryRow(`SELECT seed,corpus_digest,ok,attempts FROM runs WHERE run_id='run_1'`)
	if err := row.Scan(&seed, &digest, &ok, &attempts); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if seed != 42 || digest != "abc" || ok != 1 || attempts != 2 {
		t.Fatalf("run mismatch: seed=%d digest=%q ok=%d attempts=%d", seed, digest, ok, attempts)
	}

	var (
		cx, cy, cz sql.NullInt64
		msg        sql.NullString
	)
	row = db.QueryRow(`SELECT cell_x,cell_y,cell_z,error FROM attempts WHERE run_id='run_1' AND attempt=0`)
	if err := row.Scan(&cx, &cy, &cz, &msg); err != nil {
		t.Fatalf("Scan attempt: %v", err)
	}
	if cx.Int64 != 3 || cy.Int64 != 1 || cz.Int64 != 4 || !msg.Valid {
		t.Fatalf("attempt mismatch: %v %v %v %v", cx, cy, cz, msg)
	}
	row = db.QueryRow(`SELECT cell_x,error FROM attempts WHERE run_id='run_1' AND attempt=1`)
	if err := row.Scan(&cx, &msg); err != nil {
		t.Fatalf("Scan attempt: %v", err)
	}
	if cx.Valid || msg.Valid {
		t.Fatalf("successful attempt should have NULL cell and error: %v %v", cx, msg)
	}
}

func TestSQLiteIndex_UpsertCorpus(t *testing.T) {
	m, err := tiles.New(1, "../../../configs/prelim", tiles.Options{})
	if err != nil {
		t.Fatalf("tiles.New: %v", err)
	}
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertCorpus("configs/prelim", m); err != nil {
		t.Fatalf("UpsertCorpus: %v", err)
	}
	// same corpus twice must not duplicate the row
	if err := idx.UpsertCorpus("configs/prelim", m); err != nil {
		t.Fatalf("UpsertCorpus again: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n, tileCount int
	if err := db.QueryRow(`SELECT COUNT(*), MAX(tiles) FROM corpus`).Scan(&n, &tileCount); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 || tileCount != m.Len() {
		t.Fatalf("corpus rows=%d tiles=%d want 1/%d", n, tileCount, m.Len())
	}
	var digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='corpus_digest'`).Scan(&digest); err != nil {
		t.Fatalf("Scan meta: %v", err)
	}
	if digest != m.Digest() {
		t.Fatalf("meta digest=%q want %q", digest, m.Digest())
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRun}

	s.RecordAttempt(generate.AttemptRecord{RunID: "r"})
	s.RecordRun(generate.RunRecord{RunID: "r"})

	st := s.Stats()
	if st.DropAttemptTotal != 1 {
		t.Fatalf("DropAttemptTotal=%d want=1", st.DropAttemptTotal)
	}
	if st.DropRunTotal != 1 {
		t.Fatalf("DropRunTotal=%d want=1", st.DropRunTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
