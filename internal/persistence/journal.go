// Package persistence records terrain runs in a SQLite journal.
// Only run metadata is stored; heightmap history lives in memory.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/erosion-lab/internal/erosion"
)

// Run kinds.
const (
	KindGenerate = "generate"
	KindErode    = "erode"
	KindFlat     = "flat"
	KindPlane    = "plane"
	KindEdit     = "edit"
	KindFormula  = "formula"
)

// Run is one journaled terrain operation.
type Run struct {
	ID         string    `db:"id" json:"id"`
	Kind       string    `db:"kind" json:"kind"`
	Seed       int64     `db:"seed" json:"seed"`
	MapSize    int       `db:"map_size" json:"map_size"`
	Iterations int       `db:"iterations" json:"iterations"`
	ParamsJSON string    `db:"params_json" json:"params"`
	Eroded     float64   `db:"eroded" json:"eroded"`
	Deposited  float64   `db:"deposited" json:"deposited"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"-" json:"created_at"`

	CreatedUnixMS int64 `db:"created_at" json:"-"`
}

// NewRun builds a run record. params is stored as JSON.
func NewRun(kind string, seed int64, mapSize int, params any, stats erosion.Stats, elapsed time.Duration) (*Run, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", kind, err)
	}
	return &Run{
		Kind:       kind,
		Seed:       seed,
		MapSize:    mapSize,
		Iterations: stats.Droplets,
		ParamsJSON: string(raw),
		Eroded:     stats.Eroded,
		Deposited:  stats.Deposited,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

// Journal wraps a SQLite connection for run records.
type Journal struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite journal at the given path.
func Open(path string) (*Journal, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		seed INTEGER NOT NULL,
		map_size INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		params_json TEXT NOT NULL,
		eroded REAL NOT NULL,
		deposited REAL NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// RecordRun inserts r, filling in its ID and creation time when unset.
func (j *Journal) RecordRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.CreatedUnixMS = r.CreatedAt.UnixMilli()
	if r.ParamsJSON == "" {
		r.ParamsJSON = "{}"
	}

	_, err := j.conn.NamedExec(`INSERT INTO runs
		(id, kind, seed, map_size, iterations, params_json, eroded, deposited, duration_ms, created_at)
		VALUES (:id, :kind, :seed, :map_size, :iterations, :params_json, :eroded, :deposited, :duration_ms, :created_at)`,
		r,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	slog.Debug("run journaled", "id", r.ID, "kind", r.Kind, "iterations", r.Iterations)
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (j *Journal) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := j.conn.Select(&runs,
		`SELECT id, kind, seed, map_size, iterations, params_json, eroded, deposited, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].CreatedAt = time.UnixMilli(runs[i].CreatedUnixMS).UTC()
	}
	return runs, nil
}

// SaveMeta stores a key-value pair.
func (j *Journal) SaveMeta(key, value string) error {
	_, err := j.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (j *Journal) GetMeta(key string) (string, error) {
	var value string
	err := j.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
