package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are applied one by one at boot. Everything is
// IF NOT EXISTS so a restart against a live database is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		google_sub TEXT UNIQUE,
		account_type TEXT NOT NULL DEFAULT 'HUMAN',
		current_chips BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_daily_credit_date DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chip_ledger (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		cycle_id TEXT,
		event_type TEXT NOT NULL,
		chips_delta BIGINT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chip_ledger_user ON chip_ledger (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		cycle_date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		opened_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles (status, opened_at DESC)`,
	`CREATE TABLE IF NOT EXISTS candidate_links (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL REFERENCES cycles(id),
		submitted_by_user_id TEXT NOT NULL REFERENCES users(id),
		original_url TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (cycle_id, canonical_url)
	)`,
	`CREATE TABLE IF NOT EXISTS picks (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL REFERENCES cycles(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		candidate_id TEXT NOT NULL REFERENCES candidate_links(id),
		rank INT NOT NULL CHECK (rank BETWEEN 1 AND 10),
		picked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (cycle_id, user_id, rank),
		UNIQUE (cycle_id, user_id, candidate_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cycle_results (
		cycle_id TEXT NOT NULL REFERENCES cycles(id),
		candidate_id TEXT NOT NULL REFERENCES candidate_links(id),
		is_winner BOOLEAN NOT NULL,
		PRIMARY KEY (cycle_id, candidate_id)
	)`,
	`CREATE TABLE IF NOT EXISTS click_events (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL REFERENCES candidate_links(id),
		clicked_by_user_id TEXT,
		fingerprint_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (candidate_id, fingerprint_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_click_events_cycle ON click_events (cycle_id)`,
	`CREATE TABLE IF NOT EXISTS curation_rewards (
		cycle_id TEXT NOT NULL REFERENCES cycles(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		rank INT NOT NULL,
		unique_clicks BIGINT NOT NULL,
		reward_chips BIGINT NOT NULL,
		awarded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (cycle_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS model_predictions (
		cycle_id TEXT NOT NULL REFERENCES cycles(id),
		model_user_id TEXT NOT NULL REFERENCES users(id),
		candidate_id TEXT NOT NULL REFERENCES candidate_links(id),
		probability DOUBLE PRECISION NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (cycle_id, model_user_id, candidate_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS oauth_states (
		state TEXT PRIMARY KEY,
		redirect_to TEXT NOT NULL DEFAULT '/',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS phone_challenges (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		phone_number TEXT NOT NULL,
		provider TEXT NOT NULL,
		provider_sid TEXT,
		code_hash TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING',
		attempts INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_phones (
		phone_number TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		linked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS source_posts (
		id TEXT PRIMARY KEY,
		source_post_url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ,
		extracted_links JSONB NOT NULL DEFAULT '[]'::jsonb,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS archive_links (
		id TEXT PRIMARY KEY,
		post_date DATE NOT NULL,
		url TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		source_post_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (post_date, canonical_url)
	)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL,
		run_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DONE',
		details JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (job_name, run_key)
	)`,
}

// EnsureSchema creates all tables and indexes the market needs.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
