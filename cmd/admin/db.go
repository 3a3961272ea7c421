package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/wfc.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	runID := fs.String("run", "", "run_id filter (attempts; defaults to the latest run)")
	failed := fs.Bool("failed", false, "only failed runs or attempts")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "wfc.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "runs":
		query := `SELECT run_id,seed,corpus_digest,shape,ok,attempt,attempts,duration_ms,COALESCE(error,''),started_at FROM runs`
		if *failed {
			query += ` WHERE ok=0`
		}
		query += ` ORDER BY started_at DESC LIMIT ?`
		rows, err := db.Query(query, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID      string `json:"run_id"`
				Seed       int64  `json:"seed"`
				Digest     string `json:"corpus_digest"`
				Shape      string `json:"shape"`
				OK         bool   `json:"ok"`
				Attempt    int    `json:"attempt"`
				Attempts   int    `json:"attempts"`
				DurationMS int64  `json:"duration_ms"`
				Error      string `json:"error,omitempty"`
				StartedAt  int64  `json:"started_at"`
			}
			if err := rows.Scan(&r.RunID, &r.Seed, &r.Digest, &r.Shape, &r.OK, &r.Attempt, &r.Attempts, &r.DurationMS, &r.Error, &r.StartedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "attempts":
		id := strings.TrimSpace(*runID)
		if id == "" {
			id, err = latestRunID(db)
			if err != nil {
				fmt.Fprintln(os.Stderr, "latest run:", err)
				os.Exit(1)
			}
			if id == "" {
				fmt.Fprintln(os.Stderr, "no runs found")
				os.Exit(2)
			}
		}
		query := `SELECT run_id,attempt,attempt_seed,ok,cell_x,cell_y,cell_z,COALESCE(error,''),duration_ms FROM attempts WHERE run_id=?`
		if *failed {
			query += ` AND ok=0`
		}
		query += ` ORDER BY attempt LIMIT ?`
		rows, err := db.Query(query, id, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID       string  `json:"run_id"`
				Attempt     int     `json:"attempt"`
				AttemptSeed int64   `json:"attempt_seed"`
				OK          bool    `json:"ok"`
				Cell        *[3]int `json:"cell,omitempty"`
				Error       string  `json:"error,omitempty"`
				DurationMS  int64   `json:"duration_ms"`
			}
			var cx, cy, cz sql.NullInt64
			if err := rows.Scan(&r.RunID, &r.Attempt, &r.AttemptSeed, &r.OK, &cx, &cy, &cz, &r.Error, &r.DurationMS); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			if cx.Valid && cy.Valid && cz.Valid {
				r.Cell = &[3]int{int(cx.Int64), int(cy.Int64), int(cz.Int64)}
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "corpus":
		rows, err := db.Query(`SELECT digest,dir,span,tiles,examples,groups_json,updated_at FROM corpus ORDER BY updated_at DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Digest    string          `json:"digest"`
				Dir       string          `json:"dir"`
				Span      int             `json:"span"`
				Tiles     int             `json:"tiles"`
				Examples  int             `json:"examples"`
				Groups    json.RawMessage `json:"groups"`
				UpdatedAt string          `json:"updated_at"`
			}
			var groups string
			if err := rows.Scan(&r.Digest, &r.Dir, &r.Span, &r.Tiles, &r.Examples, &groups, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Groups = json.RawMessage(groups)
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-limit N] [-failed] [-run RUN_ID] runs|attempts|corpus")
		os.Exit(2)
	}
}

func latestRunID(db *sql.DB) (string, error) {
	if db == nil {
		return "", fmt.Errorf("nil db")
	}
	var id sql.NullString
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id.String, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
