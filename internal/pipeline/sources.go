package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/ticketpairs/internal/classify"
	"github.com/MikeSquared-Agency/ticketpairs/internal/dedup"
	"github.com/MikeSquared-Agency/ticketpairs/internal/rt"
	"github.com/MikeSquared-Agency/ticketpairs/internal/store"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// TicketFetcher is the part of the ticketing client a window source needs.
type TicketFetcher interface {
	Search(ctx context.Context, queue, from, to string) ([]string, error)
	Ticket(ctx context.Context, id string) (ticket.Ticket, error)
}

// RTSource fetches the tickets of one queue created inside one window.
type RTSource struct {
	Client  TicketFetcher
	Queue   string
	Window  Window
	Workers int
	Logger  *slog.Logger
}

// WindowSources builds one source per window of [from, to].
func WindowSources(client TicketFetcher, queue string, from, to string, days, workers int, logger *slog.Logger) ([]Source, error) {
	f, t, err := ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	var out []Source
	for _, w := range Windows(f, t, days) {
		out = append(out, &RTSource{Client: client, Queue: queue, Window: w, Workers: workers, Logger: logger})
	}
	return out, nil
}

func (s *RTSource) Name() string {
	return "rt:" + s.Queue + ":" + s.Window.String()
}

// FetchError records one ticket that could not be fetched.
type FetchError struct {
	TicketID string
	Err      error
}

// PartialError is returned alongside the tickets that were fetched when
// some tickets of a source failed.
type PartialError struct {
	Failed []FetchError
}

func (e *PartialError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.TicketID
	}
	return fmt.Sprintf("%d tickets failed to fetch: %s", len(e.Failed), strings.Join(ids, ", "))
}

// Tickets searches the window and fetches every hit. Tickets that vanished
// between search and fetch are skipped. Other fetch failures skip only the
// affected ticket and are reported through a *PartialError.
func (s *RTSource) Tickets(ctx context.Context) ([]ticket.Ticket, error) {
	ids, err := s.Client.Search(ctx, s.Queue, s.Window.From.Format(DateLayout), s.Window.To.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	s.Logger.Info("window searched", "source", s.Name(), "tickets", len(ids))

	fetched := make([]ticket.Ticket, len(ids))
	found := make([]bool, len(ids))
	failed := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			t, err := s.Client.Ticket(gctx, id)
			if errors.Is(err, rt.ErrNotFound) {
				s.Logger.Warn("ticket not found, skipping", "ticket", id)
				return nil
			}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.Logger.Warn("ticket fetch failed, skipping", "ticket", id, "error", err)
				failed[i] = fmt.Errorf("fetch ticket %s: %w", id, err)
				return nil
			}
			if t.Queue == "" {
				t.Queue = s.Queue
			}
			fetched[i], found[i] = t, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ticket.Ticket, 0, len(ids))
	var partial PartialError
	for i := range fetched {
		if found[i] {
			out = append(out, fetched[i])
		}
		if failed[i] != nil {
			partial.Failed = append(partial.Failed, FetchError{TicketID: ids[i], Err: failed[i]})
		}
	}
	if len(partial.Failed) > 0 {
		return out, &partial
	}
	return out, nil
}

// RecordLister reads raw mail records from the ticketing database.
type RecordLister interface {
	ListAttachments(ctx context.Context, f store.AttachmentFilter) ([]dedup.RawRecord, error)
}

// BulkSource turns raw mail records into positional tickets: records are
// cleaned, grouped by ticket and de-duplicated, and single-record threads
// are dropped.
type BulkSource struct {
	Records RecordLister
	Filter  store.AttachmentFilter
	// Queue keeps only tickets routed to this queue when set.
	Queue   string
	Profile *classify.Profile
	Logger  *slog.Logger
}

func (s *BulkSource) Name() string {
	name := "bulk"
	if s.Queue != "" {
		name += ":" + s.Queue
	}
	if !s.Filter.From.IsZero() || !s.Filter.To.IsZero() {
		name += ":" + s.Filter.From.Format(DateLayout) + ".." + s.Filter.To.Format(DateLayout)
	}
	return name
}

func (s *BulkSource) Tickets(ctx context.Context) ([]ticket.Ticket, error) {
	raw, err := s.Records.ListAttachments(ctx, s.Filter)
	if err != nil {
		return nil, err
	}

	records, stats := dedup.Prepare(raw)
	threads := dedup.Group(records)
	multi, standalone := dedup.SplitStandalone(threads)

	duplicates := 0
	for _, th := range threads {
		duplicates += th.Duplicates
	}
	s.Logger.Info("records prepared",
		"total", stats.Total,
		"dropped_subject", stats.Subject,
		"decode_errors", stats.DecodeErrors,
		"no_ticket", stats.NoTicket,
		"threads", len(threads),
		"duplicates", duplicates,
		"standalone", len(standalone),
	)

	profile := s.Profile
	if profile == nil {
		profile = classify.NewBulkProfile(nil)
	}

	out := make([]ticket.Ticket, 0, len(multi))
	filtered := 0
	for _, th := range multi {
		t := ThreadTicket(th, profile)
		if s.Queue != "" && t.Queue != s.Queue {
			filtered++
			continue
		}
		out = append(out, t)
	}
	if s.Queue != "" {
		s.Logger.Info("queue filter applied", "queue", s.Queue, "kept", len(out), "filtered", filtered)
	}
	return out, nil
}

// ThreadTicket converts a de-duplicated thread into a ticket. The category
// comes from the first record; the queue is the last one any record names.
func ThreadTicket(th dedup.Thread, profile *classify.Profile) ticket.Ticket {
	t := ticket.Ticket{ID: th.Key}
	for i, rec := range th.Records {
		lines := strings.Split(rec.Content, "\n")
		if i == 0 {
			t.Category = classify.CategoryOf(lines)
		}
		if q := profile.QueueOf(lines); q != "" {
			t.Queue = q
		}
		t.Items = append(t.Items, ticket.Item{
			Description: rec.Subject,
			Content:     rec.Content,
			Kind:        ticket.KindMessage,
			Creator:     rec.Headers["From"],
		})
	}
	return t
}

// FileSource reads tickets from a JSON file holding one ticket or an array.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Tickets(ctx context.Context) ([]ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expandHome(s.Path))
	if err != nil {
		return nil, fmt.Errorf("read tickets: %w", err)
	}
	return ParseTickets(data)
}

// ParseTickets decodes one ticket or an array of tickets.
func ParseTickets(data []byte) ([]ticket.Ticket, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty ticket document")
	}
	if trimmed[0] == '[' {
		var ts []ticket.Ticket
		if err := json.Unmarshal(trimmed, &ts); err != nil {
			return nil, fmt.Errorf("parse tickets: %w", err)
		}
		return ts, nil
	}
	var t ticket.Ticket
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return nil, fmt.Errorf("parse ticket: %w", err)
	}
	return []ticket.Ticket{t}, nil
}
