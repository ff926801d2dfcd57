package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/towerworks/foundation-core/internal/grouping"
	"github.com/towerworks/foundation-core/internal/optimizer"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// SQLiteStore persists runs in a SQLite database file. Tower results and
// picks are stored as JSON documents next to their indexed keys.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers from concurrent tower workers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	PRAGMA foreign_keys = ON;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		site TEXT NOT NULL DEFAULT '',
		params_yaml TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		started_at INTEGER NOT NULL DEFAULT 0,
		ended_at INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		summary_json TEXT,
		uncovered_json TEXT,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_seq ON runs(seq);

	CREATE TABLE IF NOT EXISTS tower_results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		tower TEXT NOT NULL,
		status TEXT NOT NULL,
		solutions INTEGER NOT NULL,
		result_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tower)
	);

	CREATE TABLE IF NOT EXISTS group_picks (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		iteration INTEGER NOT NULL,
		group_id TEXT NOT NULL,
		coverage INTEGER NOT NULL,
		threshold_pct REAL NOT NULL,
		pick_json TEXT NOT NULL,
		PRIMARY KEY (run_id, iteration)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const runColumns = `id, mode, kind, status, site, params_yaml, created_at, started_at, ended_at, error, summary_json, uncovered_json`

func (s *SQLiteStore) Create(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = utils.GenerateRunID()
	}
	run.Status = StatusPending
	run.CreatedAtUnixMs = nowUnixMs()
	run.StartedAtUnixMs, run.EndedAtUnixMs = 0, 0

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, run.ID).Scan(&exists)
	if err != nil {
		return Run{}, err
	}
	if exists > 0 {
		return Run{}, fmt.Errorf("%w: %s", ErrRunExists, run.ID)
	}
	summary, uncovered, err := encodeOutcome(run.Summary, run.Uncovered)
	if err != nil {
		return Run{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))`,
		run.ID, string(run.Mode), string(run.Kind), string(run.Status), run.Site, run.ParamsYAML,
		run.CreatedAtUnixMs, run.StartedAtUnixMs, run.EndedAtUnixMs, run.Error, summary, uncovered)
	if err != nil {
		return Run{}, fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, err
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                Run
		mode, kind, status string
		summary, uncovered sql.NullString
	)
	err := row.Scan(&run.ID, &mode, &kind, &status, &run.Site, &run.ParamsYAML,
		&run.CreatedAtUnixMs, &run.StartedAtUnixMs, &run.EndedAtUnixMs, &run.Error, &summary, &uncovered)
	if err != nil {
		return Run{}, err
	}
	run.Mode, run.Kind, run.Status = Mode(mode), models.Kind(kind), Status(status)
	if summary.Valid {
		var sm optimizer.Summary
		if err := json.Unmarshal([]byte(summary.String), &sm); err != nil {
			return Run{}, fmt.Errorf("decode summary of run %s: %w", run.ID, err)
		}
		run.Summary = &sm
	}
	if uncovered.Valid {
		if err := json.Unmarshal([]byte(uncovered.String), &run.Uncovered); err != nil {
			return Run{}, fmt.Errorf("decode uncovered towers of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY seq LIMIT ? OFFSET ?`
	args = append(args, f.limit(), max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status Status, errMsg string) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	run, err := scanRun(tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	transition(&run, status, errMsg)
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, started_at = ?, ended_at = ? WHERE id = ?`,
		string(run.Status), run.Error, run.StartedAtUnixMs, run.EndedAtUnixMs, id)
	if err != nil {
		return Run{}, fmt.Errorf("update run %s: %w", id, err)
	}
	return run, tx.Commit()
}

func (s *SQLiteStore) SetOutcome(ctx context.Context, id string, out Outcome) error {
	summary, uncovered, err := encodeOutcome(&out.Summary, out.Uncovered)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary_json = ?, uncovered_json = ? WHERE id = ?`, summary, uncovered, id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *SQLiteStore) RecordTower(ctx context.Context, runID string, result models.TowerResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode tower %s: %w", result.Tower.Name, err)
	}
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tower_results (run_id, tower, status, solutions, result_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id, tower) DO UPDATE SET
			status = excluded.status,
			solutions = excluded.solutions,
			result_json = excluded.result_json`,
		runID, result.Tower.Name, string(result.Status), len(result.Solutions), string(data))
	if err != nil {
		return fmt.Errorf("insert tower %s: %w", result.Tower.Name, err)
	}
	return nil
}

func (s *SQLiteStore) RecordGroup(ctx context.Context, runID string, pick grouping.Pick) error {
	data, err := json.Marshal(pick)
	if err != nil {
		return fmt.Errorf("encode group %s: %w", pick.Group.ID, err)
	}
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO group_picks (run_id, iteration, group_id, coverage, threshold_pct, pick_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, pick.Iteration, pick.Group.ID, pick.Group.Coverage, pick.ThresholdPct, string(data))
	if err != nil {
		return fmt.Errorf("insert group %s: %w", pick.Group.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Towers(ctx context.Context, runID string) ([]models.TowerResult, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT result_json FROM tower_results WHERE run_id = ? ORDER BY tower`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TowerResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r models.TowerResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode tower result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Picks(ctx context.Context, runID string) ([]grouping.Pick, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT pick_json FROM group_picks WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []grouping.Pick
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p grouping.Pick
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode group pick: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) requireRun(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// encodeOutcome renders the optional summary columns; nil values stay NULL.
func encodeOutcome(summary *optimizer.Summary, uncovered []string) (any, any, error) {
	var sv, uv any
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return nil, nil, fmt.Errorf("encode summary: %w", err)
		}
		sv = string(data)
	}
	if uncovered != nil {
		data, err := json.Marshal(uncovered)
		if err != nil {
			return nil, nil, fmt.Errorf("encode uncovered towers: %w", err)
		}
		uv = string(data)
	}
	return sv, uv, nil
}
