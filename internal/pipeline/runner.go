// Package pipeline drives the reconstruction engine over ticket sources:
// worker pool, resumable state, persistence and run summaries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/ticketpairs/internal/hermes"
	"github.com/MikeSquared-Agency/ticketpairs/internal/reconstruct"
	"github.com/MikeSquared-Agency/ticketpairs/internal/slack"
	"github.com/MikeSquared-Agency/ticketpairs/internal/store"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// Source yields the tickets of one unit of work, such as a date window.
type Source interface {
	Name() string
	Tickets(ctx context.Context) ([]ticket.Ticket, error)
}

// RunWriter persists a finished run.
type RunWriter interface {
	WriteRun(ctx context.Context, run store.RunRecord, pairs []ticket.Pair) (uuid.UUID, error)
}

// Publisher sends events to the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Config holds runner configuration.
type Config struct {
	Workers      int
	DryRun       bool   // skip the store write
	StatePath    string // empty keeps state in memory
	SlackToken   string // optional: Slack bot token for posting summaries
	SlackChannel string // optional: Slack channel for summaries
}

// Runner reconstructs every ticket of its sources.
type Runner struct {
	cfg    Config
	engine *reconstruct.Engine
	store  RunWriter
	pub    Publisher
	slack  *slack.Poster
	logger *slog.Logger
}

// NewRunner creates a runner. st and pub may be nil.
func NewRunner(cfg Config, engine *reconstruct.Engine, st RunWriter, pub Publisher, logger *slog.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	r := &Runner{
		cfg:    cfg,
		engine: engine,
		store:  st,
		pub:    pub,
		logger: logger,
	}

	// Set up optional Slack poster for run summaries.
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		r.slack = slack.NewPoster(cfg.SlackToken, cfg.SlackChannel, logger)
	}

	return r
}

// Run processes sources in order. Sources and tickets recorded in the state
// file are skipped, so an interrupted run can be resumed. The state is saved
// after every source. On cancellation the partial summary is returned with
// the context's error; no ticket is half processed.
func (r *Runner) Run(ctx context.Context, sources ...Source) (*Summary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	sum := newSummary(r.engine.Mode(), r.cfg.DryRun)

	for _, src := range sources {
		name := src.Name()
		if err := ctx.Err(); err != nil {
			return r.interrupted(sum, state, err)
		}
		if state.SourceDone(name) {
			r.logger.Info("source already processed, skipping", "source", name)
			continue
		}

		tickets, err := src.Tickets(ctx)
		if err != nil && ctx.Err() != nil {
			return r.interrupted(sum, state, ctx.Err())
		}
		var partial *PartialError
		if err != nil && !errors.As(err, &partial) {
			r.logger.Error("source failed", "source", name, "error", err)
			msg := fmt.Sprintf("source %s: %v", name, err)
			state.AddError(msg)
			sum.Errors = append(sum.Errors, msg)
			continue
		}

		pending := r.pending(tickets, state)
		sum.Skipped += len(tickets) - len(pending)

		results, err := r.reconstructAll(ctx, pending)
		if err != nil {
			return r.interrupted(sum, state, err)
		}

		produced := 0
		for i, res := range results {
			if res.Discarded() {
				r.logger.Debug("ticket discarded", "ticket", res.TicketID, "reason", res.Discard, "detail", res.Detail)
			} else {
				r.logger.Debug("ticket reconstructed", "ticket", res.TicketID, "turns", len(res.Turns), "pairs", len(res.Pairs))
			}
			sum.add(res)
			produced += len(res.Pairs)
			if id := pending[i].ID; id != "" {
				state.MarkTicket(id)
			}
		}

		for _, f := range failedTickets(partial) {
			sum.add(reconstruct.Result{TicketID: f.TicketID, Discard: reconstruct.ReasonFetchError, Detail: f.Err.Error()})
			msg := fmt.Sprintf("source %s: %v", name, f.Err)
			state.AddError(msg)
			sum.Errors = append(sum.Errors, msg)
		}

		state.PairsProduced += produced
		// A source with failed tickets stays open so a resumed run refetches
		// them; its finished tickets are skipped through the state.
		if partial == nil {
			state.MarkSource(name)
		}
		sum.Sources = append(sum.Sources, name)
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "path", state.Path(), "error", err)
		}

		r.logger.Info("source processed",
			"source", name,
			"tickets", len(tickets),
			"new", len(pending),
			"pairs", produced,
		)
	}

	sum.FinishedAt = time.Now().UTC()
	r.finish(ctx, sum)
	return sum, nil
}

func failedTickets(err *PartialError) []FetchError {
	if err == nil {
		return nil
	}
	return err.Failed
}

// pending drops tickets already processed in this or an earlier run.
// Overlapping date windows return some tickets twice.
func (r *Runner) pending(tickets []ticket.Ticket, state *State) []ticket.Ticket {
	seen := make(map[string]bool, len(tickets))
	out := make([]ticket.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.ID != "" && (state.TicketDone(t.ID) || seen[t.ID]) {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// reconstructAll runs the engine on a bounded worker pool. Results keep the
// order of tickets regardless of the number of workers.
func (r *Runner) reconstructAll(ctx context.Context, tickets []ticket.Ticket) ([]reconstruct.Result, error) {
	results := make([]reconstruct.Result, len(tickets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, t := range tickets {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.engine.Reconstruct(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) interrupted(sum *Summary, state *State, err error) (*Summary, error) {
	r.logger.Info("run interrupted, saving state", "sources_done", len(sum.Sources))
	if serr := state.Save(); serr != nil {
		r.logger.Warn("failed to save state", "path", state.Path(), "error", serr)
	}
	sum.FinishedAt = time.Now().UTC()
	return sum, err
}

// finish persists the run, announces it and posts the summary. Failures are
// logged; the pairs are still returned to the caller.
func (r *Runner) finish(ctx context.Context, sum *Summary) {
	if r.store != nil && !r.cfg.DryRun {
		run := store.RunRecord{
			ID:         sum.RunID,
			Mode:       sum.Mode,
			Source:     strings.Join(sum.Sources, ","),
			Tickets:    sum.Tickets,
			Discarded:  sum.TotalDiscarded(),
			Pairs:      sum.PairCount,
			StartedAt:  sum.StartedAt,
			FinishedAt: sum.FinishedAt,
		}
		if _, err := r.store.WriteRun(ctx, run, sum.Pairs); err != nil {
			r.logger.Error("persist run failed", "run_id", sum.RunID, "error", err)
			sum.Errors = append(sum.Errors, fmt.Sprintf("persist run: %v", err))
		}
	}

	if r.pub != nil {
		ev := hermes.RunCompleted{
			RunID:     sum.RunID.String(),
			Mode:      sum.Mode,
			Sources:   sum.Sources,
			Tickets:   sum.Tickets,
			Discarded: sum.DiscardCounts(),
			Pairs:     sum.PairCount,
			Timestamp: sum.FinishedAt,
		}
		if err := r.pub.Publish(hermes.SubjectRunCompleted, ev); err != nil {
			r.logger.Warn("failed to publish run completion", "error", err)
		}
	}

	r.postSummary(ctx, sum)

	r.logger.Info("run complete",
		"run_id", sum.RunID,
		"mode", sum.Mode,
		"tickets", sum.Tickets,
		"skipped", sum.Skipped,
		"discarded", sum.DiscardCounts(),
		"pairs", sum.PairCount,
		"errors", len(sum.Errors),
		"dry_run", sum.DryRun,
	)
}

// postSummary posts the run summary to Slack. If Slack is not configured, it
// logs the summary instead.
func (r *Runner) postSummary(ctx context.Context, sum *Summary) {
	text := FormatSummary(sum)

	if r.slack == nil {
		r.logger.Info("run summary (no Slack configured)", "summary", text)
		return
	}

	if _, err := r.slack.PostSummary(ctx, "Ticket reconstruction run", text); err != nil {
		r.logger.Warn("failed to post run summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}
