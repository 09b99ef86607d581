// Package turso persists experiment definitions and advisory flags to a
// libsql database. The in-memory registry stays the runtime authority;
// this adapter only provides durability across restarts.
package turso

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

// NewDB opens and pings a libsql database. authToken may be empty for
// local file databases.
func NewDB(url, authToken string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the adapter's tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT,
			ended_at TEXT,
			target_sample_size INTEGER NOT NULL DEFAULT 0,
			significance_threshold REAL NOT NULL,
			metrics TEXT NOT NULL,
			variants TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS flags (
			id TEXT PRIMARY KEY,
			experiment_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			confidence REAL NOT NULL,
			lift REAL NOT NULL,
			control_rate REAL NOT NULL,
			variant_rate REAL NOT NULL,
			raised_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flags_experiment ON flags(experiment_id, raised_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
