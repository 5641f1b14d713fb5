// Package store implements LearningStore, the engine's single source of
// historical truth (spec.md 4.F): a sqlite database holding the
// decisions/llm_interactions/patterns/daily_performance/news_timelines/
// overnight_analyses tables, plus append-only JSONL artifact writers for
// the human-readable conversation/summary logs spec.md §6 lists. Every
// write is a single-row, single-transaction insert; reads never error on
// a missing or empty range, they return zero values, since an empty
// LearningStore (day one, a fresh symbol) is a normal starting state, not
// a failure.
//
// Grounded on the teacher's internal/database/sqlite.go (connection
// pragmas: WAL journal mode, busy_timeout, foreign_keys on) and
// internal/database/database.go's DBPool shape (Query/QueryRow/Exec over
// *sql.DB) before both were deleted as schema-less generic wrappers; this
// package is what should have stood in their place, holding this domain's
// actual schema instead of zero CREATE TABLE statements.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nyxtrader/decisioncore/internal/config"
	"github.com/nyxtrader/decisioncore/internal/logging"
)

// Store is LearningStore's sqlite-backed implementation.
type Store struct {
	db          *sql.DB
	artifactDir string
	logger      *logging.StandardLogger
}

// Open connects to cfg.SQLitePath, applies pragmas the way the teacher's
// sqlite.go does, runs the schema migration, and ensures the artifact
// directory exists.
func Open(cfg config.DatabaseConfig, logger *logging.StandardLogger) (*Store, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("store: sqlite path is required")
	}

	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		db.SetConnMaxLifetime(d)
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", pragma, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	artifactDir := cfg.ArtifactDir
	if artifactDir == "" {
		artifactDir = "data/artifacts"
	}
	if err := ensureDir(artifactDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: artifact dir: %w", err)
	}

	return &Store{db: db, artifactDir: artifactDir, logger: logger.WithComponent("learning_store")}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price_snapshot TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	sentiment TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	risk_factors TEXT NOT NULL DEFAULT '[]',
	quality_scores TEXT NOT NULL DEFAULT '{}',
	llm_raw_response TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL,
	trigger TEXT NOT NULL,
	query_type TEXT NOT NULL,
	executed INTEGER NOT NULL DEFAULT 0,
	execution_reason TEXT NOT NULL DEFAULT '',
	order_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decisions_symbol_ts ON decisions(symbol, timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(timestamp);

CREATE TABLE IF NOT EXISTS llm_interactions (
	id TEXT PRIMARY KEY,
	decision_id TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL,
	policy_id TEXT NOT NULL,
	provider_id TEXT NOT NULL DEFAULT '',
	model_id TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL,
	raw_response TEXT NOT NULL,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_interactions_symbol_ts ON llm_interactions(symbol, timestamp);

CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	conditions TEXT NOT NULL DEFAULT '{}',
	success_rate REAL NOT NULL,
	sample_size INTEGER NOT NULL,
	avg_return REAL NOT NULL,
	risk_reward REAL NOT NULL,
	discovered_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_performance (
	trading_date TEXT PRIMARY KEY,
	starting_equity TEXT NOT NULL,
	ending_equity TEXT NOT NULL DEFAULT '',
	realized_pnl_pct REAL NOT NULL DEFAULT 0,
	trades_executed INTEGER NOT NULL DEFAULT 0,
	consecutive_losses INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS news_timelines (
	symbol TEXT NOT NULL,
	trading_date TEXT NOT NULL,
	payload TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (symbol, trading_date)
);

CREATE TABLE IF NOT EXISTS overnight_analyses (
	symbol TEXT NOT NULL,
	trading_date TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (symbol, trading_date)
);
`

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
