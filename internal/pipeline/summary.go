package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/ticketpairs/internal/reconstruct"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// Summary aggregates one run.
type Summary struct {
	RunID      uuid.UUID                         `json:"run_id"`
	Mode       string                            `json:"mode"`
	Sources    []string                          `json:"sources"`
	Tickets    int                               `json:"tickets"`
	Skipped    int                               `json:"skipped"`
	Discarded  map[reconstruct.DiscardReason]int `json:"discarded"`
	PairCount  int                               `json:"pairs"`
	ByQueue    map[string]int                    `json:"pairs_by_queue"`
	Errors     []string                          `json:"errors,omitempty"`
	DryRun     bool                              `json:"dry_run"`
	StartedAt  time.Time                         `json:"started_at"`
	FinishedAt time.Time                         `json:"finished_at"`

	// Pairs holds every pair produced, in ticket order.
	Pairs []ticket.Pair `json:"-"`
}

func newSummary(mode reconstruct.Mode, dryRun bool) *Summary {
	return &Summary{
		RunID:     uuid.New(),
		Mode:      mode.String(),
		Discarded: make(map[reconstruct.DiscardReason]int),
		ByQueue:   make(map[string]int),
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}

// add folds one ticket's result into the summary.
func (s *Summary) add(res reconstruct.Result) {
	s.Tickets++
	if res.Discarded() {
		s.Discarded[res.Discard]++
		return
	}
	s.PairCount += len(res.Pairs)
	for _, p := range res.Pairs {
		queue := p.Queue
		if queue == "" {
			queue = "unknown"
		}
		s.ByQueue[queue]++
	}
	s.Pairs = append(s.Pairs, res.Pairs...)
}

// TotalDiscarded counts tickets that produced no pairs.
func (s *Summary) TotalDiscarded() int {
	n := 0
	for _, c := range s.Discarded {
		n += c
	}
	return n
}

// DiscardCounts returns the discard counts keyed by reason name.
func (s *Summary) DiscardCounts() map[string]int {
	out := make(map[string]int, len(s.Discarded))
	for reason, n := range s.Discarded {
		out[string(reason)] = n
	}
	return out
}

// FormatSummary renders a run summary as Slack markdown.
func FormatSummary(s *Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Run* `%s` (%s mode)\n", s.RunID, s.Mode)
	if len(s.Sources) > 0 {
		fmt.Fprintf(&sb, "*Sources:* %s\n", strings.Join(s.Sources, ", "))
	}
	fmt.Fprintf(&sb, "Tickets: %d (skipped %d already processed)\n", s.Tickets, s.Skipped)
	fmt.Fprintf(&sb, "Pairs: %d\n", s.PairCount)

	if total := s.TotalDiscarded(); total > 0 {
		fmt.Fprintf(&sb, "\n*Discarded: %d*\n", total)
		reasons := make([]string, 0, len(s.Discarded))
		for r := range s.Discarded {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&sb, "  - %s: %d\n", r, s.Discarded[reconstruct.DiscardReason(r)])
		}
	}

	if len(s.ByQueue) > 0 {
		sb.WriteString("\n*Pairs by queue*\n")
		queues := make([]string, 0, len(s.ByQueue))
		for q := range s.ByQueue {
			queues = append(queues, q)
		}
		sort.Slice(queues, func(i, j int) bool {
			if s.ByQueue[queues[i]] != s.ByQueue[queues[j]] {
				return s.ByQueue[queues[i]] > s.ByQueue[queues[j]]
			}
			return queues[i] < queues[j]
		})
		for _, q := range queues {
			fmt.Fprintf(&sb, "  - %s: %d\n", q, s.ByQueue[q])
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(&sb, "\n_%d errors, see logs_\n", len(s.Errors))
	}
	if s.DryRun {
		sb.WriteString("_Dry run: nothing persisted_\n")
	}
	return sb.String()
}
