package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// schema holds the tables this service owns. The ticketing system's own
// tables are only read.
const schema = `
CREATE TABLE IF NOT EXISTS pair_runs (
	id          uuid PRIMARY KEY,
	mode        text NOT NULL,
	source      text NOT NULL,
	tickets     integer NOT NULL,
	discarded   integer NOT NULL,
	pairs       integer NOT NULL,
	started_at  timestamptz NOT NULL,
	finished_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS training_pairs (
	id        uuid PRIMARY KEY,
	run_id    uuid NOT NULL REFERENCES pair_runs(id) ON DELETE CASCADE,
	ticket_id text NOT NULL,
	position  integer NOT NULL,
	prompt    text NOT NULL,
	chosen    text NOT NULL,
	rejected  text NOT NULL,
	category  text NOT NULL DEFAULT '',
	queue     text NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS training_pairs_run_idx ON training_pairs (run_id, position);
`

// Migrate creates the service's tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
