// Package postgres keeps the run ledger in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

// DefaultTable holds one row per job run.
const DefaultTable = "ingest_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres pool used for run rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunStore writes run reports into Postgres.
type RunStore struct {
	pool  execCloser
	table string
}

// NewRunStore opens a pool for cfg.DSN.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("runs.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRunStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRunStoreWithPool wraps an existing pool.
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the run table when missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	params      JSONB,
	stats       JSONB,
	error       TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// SaveReport inserts one run row.
func (s *RunStore) SaveReport(ctx context.Context, report runs.Report) error {
	if report.ID == "" {
		return errors.New("report id is required")
	}
	params, err := marshalJSON(report.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	stats, err := marshalJSON(report.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	var errText *string
	if report.Error != "" {
		errText = &report.Error
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, kind, status, started_at, finished_at, params, stats, error)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, s.table)
	_, err = s.pool.Exec(ctx, query,
		report.ID,
		string(report.Kind),
		string(report.Status),
		report.StartedAt,
		report.FinishedAt,
		params,
		stats,
		errText,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.ID, err)
	}
	return nil
}

// Close releases the pool.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
