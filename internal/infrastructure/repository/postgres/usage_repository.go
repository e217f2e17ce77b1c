package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// UsageRepository counts successful runs per client.
type UsageRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *UsageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS usage_counters (
	client_id TEXT PRIMARY KEY,
	runs INTEGER NOT NULL DEFAULT 0,
	first_run_at TIMESTAMPTZ NOT NULL,
	last_run_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *UsageRepository) Count(ctx context.Context, clientID string) (int, error) {
	var runs int
	err := r.db.QueryRowContext(ctx, `
SELECT runs
FROM usage_counters
WHERE client_id = $1
`, clientID).Scan(&runs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select usage: %w", err)
	}
	return runs, nil
}

func (r *UsageRepository) Increment(ctx context.Context, clientID string) (int, error) {
	now := r.now().UTC()
	var runs int
	err := r.db.QueryRowContext(ctx, `
INSERT INTO usage_counters (client_id, runs, first_run_at, last_run_at)
VALUES ($1, 1, $2, $2)
ON CONFLICT (client_id) DO UPDATE
SET runs = usage_counters.runs + 1,
	last_run_at = EXCLUDED.last_run_at
RETURNING runs
`, clientID, now).Scan(&runs)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return runs, nil
}
