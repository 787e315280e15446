package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// RunRecord summarises one pipeline run.
type RunRecord struct {
	ID         uuid.UUID `json:"id"`
	Mode       string    `json:"mode"`
	Source     string    `json:"source"`
	Tickets    int       `json:"tickets"`
	Discarded  int       `json:"discarded"`
	Pairs      int       `json:"pairs"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// WriteRun stores a run and its pairs in one transaction, loading the pairs
// with COPY. The run id is generated when run.ID is nil.
func (s *Store) WriteRun(ctx context.Context, run RunRecord, pairs []ticket.Pair) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO pair_runs (id, mode, source, tickets, discarded, pairs, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Mode, run.Source, run.Tickets, run.Discarded, len(pairs), run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	if len(pairs) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"training_pairs"}, pairColumns, pgx.CopyFromRows(pairRows(run.ID, pairs)))
		if err != nil {
			return uuid.Nil, fmt.Errorf("copy pairs: %w", err)
		}
		if int(n) != len(pairs) {
			return uuid.Nil, fmt.Errorf("copy pairs: wrote %d of %d", n, len(pairs))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

var pairColumns = []string{"id", "run_id", "ticket_id", "position", "prompt", "chosen", "rejected", "category", "queue"}

// pairRows lays out pairs in pairColumns order, numbering them by position.
func pairRows(runID uuid.UUID, pairs []ticket.Pair) [][]any {
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		rows[i] = []any{uuid.New(), runID, p.TicketID, int32(i), p.Prompt, p.Chosen, p.Rejected, p.Category, p.Queue}
	}
	return rows
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, mode, source, tickets, discarded, pairs, started_at, finished_at
		FROM pair_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Mode, &r.Source, &r.Tickets, &r.Discarded, &r.Pairs, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunPairs returns the pairs of a run in their original order.
func (s *Store) RunPairs(ctx context.Context, runID uuid.UUID) ([]ticket.Pair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, prompt, chosen, rejected, category, queue
		FROM training_pairs
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query pairs: %w", err)
	}
	defer rows.Close()

	var out []ticket.Pair
	for rows.Next() {
		var p ticket.Pair
		if err := rows.Scan(&p.TicketID, &p.Prompt, &p.Chosen, &p.Rejected, &p.Category, &p.Queue); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
