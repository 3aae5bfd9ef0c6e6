package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations creates the warikan tables if they do not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS nomikai_events (
		id BIGSERIAL PRIMARY KEY,
		guild_id BIGINT NOT NULL,
		channel_id TEXT NOT NULL,
		organizer_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		rounding_unit BIGINT NOT NULL DEFAULT 100,
		remainder_strategy TEXT NOT NULL DEFAULT 'largest',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		closed_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_nomikai_events_active_channel
		ON nomikai_events(channel_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS nomikai_event_members (
		seq BIGSERIAL,
		event_id BIGINT NOT NULL REFERENCES nomikai_events(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		weight DOUBLE PRECISION NOT NULL DEFAULT 1,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS nomikai_payments (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES nomikai_events(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		memo TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS nomikai_payment_beneficiaries (
		payment_id BIGINT NOT NULL REFERENCES nomikai_payments(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (payment_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS nomikai_settlement_tasks (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES nomikai_events(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL,
		payee_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nomikai_settlement_tasks_event
		ON nomikai_settlement_tasks(event_id, completed)`,
	`CREATE TABLE IF NOT EXISTS nomikai_task_payments (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES nomikai_events(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL,
		payee_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		memo TEXT,
		recorded_by TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS nomikai_settlement_runs (
		event_id BIGINT PRIMARY KEY REFERENCES nomikai_events(id) ON DELETE CASCADE,
		rounding_unit BIGINT NOT NULL,
		remainder_strategy TEXT NOT NULL,
		unmatched_credit BIGINT NOT NULL DEFAULT 0,
		unmatched_debit BIGINT NOT NULL DEFAULT 0,
		skipped INT NOT NULL DEFAULT 0,
		settled_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS nomikai_reminders (
		event_id BIGINT PRIMARY KEY REFERENCES nomikai_events(id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		interval_minutes INT NOT NULL DEFAULT 1440,
		next_due_at TIMESTAMP,
		last_sent_at TIMESTAMP
	)`,
}
