// Package reconstruct turns one ticket's raw history into training pairs.
//
// The engine runs the classifiers in a fixed order: a ticket-level forward
// gate, then per item the attachment and encoding gates, speaker resolution,
// the worthless-item gate, and the line loop. Any ticket-level gate discards
// the whole ticket; nothing from a discarded ticket is returned as pairs.
package reconstruct

import (
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/ticketpairs/internal/assemble"
	"github.com/MikeSquared-Agency/ticketpairs/internal/classify"
	"github.com/MikeSquared-Agency/ticketpairs/internal/speaker"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// Mode selects how items are interpreted.
type Mode int

const (
	// ModeHistory handles ticket histories with item descriptions, where the
	// speaker of every item is resolved.
	ModeHistory Mode = iota
	// ModeBulk handles raw mail records without descriptions; turns are
	// assumed to alternate by position.
	ModeBulk
)

func (m Mode) String() string {
	if m == ModeBulk {
		return "bulk"
	}
	return "history"
}

// DiscardReason says why a ticket produced no pairs.
type DiscardReason string

const (
	ReasonNone                 DiscardReason = ""
	ReasonForwarded            DiscardReason = "forwarded"
	ReasonAttachment           DiscardReason = "attachment"
	ReasonUnresolvedAttachment DiscardReason = "unresolved_attachment"
	ReasonForeignText          DiscardReason = "foreign_text"
	ReasonUndecodable          DiscardReason = "undecodable"
	ReasonFetchError           DiscardReason = "fetch_error"
	ReasonTooFewTurns          DiscardReason = "too_few_turns"
)

// Options configures an Engine.
type Options struct {
	Mode Mode
	// Queues overrides the team/queue vocabulary used for forward detection.
	Queues []string
	// MergeTurns joins adjacent same-speaker turns before pairing.
	MergeTurns bool
	Actors     speaker.Actors
}

// Result is the outcome for one ticket.
type Result struct {
	TicketID string                `json:"ticket_id"`
	Pairs    []ticket.Pair         `json:"pairs"`
	Turns    []ticket.Turn         `json:"turns,omitempty"`
	Discard  DiscardReason         `json:"discard,omitempty"`
	Detail   string                `json:"detail,omitempty"`
	Identity speaker.IdentityState `json:"identity"`
}

// Discarded reports whether the ticket was rejected.
func (r Result) Discarded() bool { return r.Discard != ReasonNone }

// Engine holds immutable rule tables and can be shared across goroutines.
type Engine struct {
	mode     Mode
	profile  *classify.Profile
	resolver *speaker.Resolver
	assemble assemble.Options
}

// New builds an engine.
func New(opts Options) *Engine {
	profile := classify.NewProfile(opts.Queues)
	if opts.Mode == ModeBulk {
		profile = classify.NewBulkProfile(opts.Queues)
	}
	return &Engine{
		mode:     opts.Mode,
		profile:  profile,
		resolver: speaker.NewResolver(opts.Actors),
		assemble: assemble.Options{MergeConsecutive: opts.MergeTurns},
	}
}

// Mode returns the engine's mode.
func (e *Engine) Mode() Mode { return e.mode }

// Reconstruct processes t. It never returns an error: every failure is a
// discard reason on the result.
func (e *Engine) Reconstruct(t ticket.Ticket) Result {
	res := Result{TicketID: t.ID, Identity: speaker.NewState()}

	if line, ok := e.forwarded(t.Items); ok {
		return discard(res, ReasonForwarded, line)
	}

	state := speaker.NewState()
	var turns []ticket.Turn
	var accepted []string

	for _, item := range t.Items {
		if reason, detail := e.gate(item); reason != ReasonNone {
			res.Identity = state
			return discard(res, reason, detail)
		}

		d := speaker.Decision{Retain: true, Content: item.Content}
		if e.mode == ModeHistory {
			d, state = e.resolver.Resolve(state, item)
			if !d.Retain {
				continue
			}
		}

		lines := strings.Split(d.Content, "\n")
		if e.profile.IsWorthlessItem(lines) {
			continue
		}

		kept := e.cleanLines(lines, accepted, state.LegalName, d.EmailReply)
		if len(kept) == 0 {
			continue
		}
		text := strings.Join(kept, "\n")
		turns = append(turns, ticket.Turn{Speaker: d.Speaker, Text: text})
		accepted = append(accepted, text)
	}

	res.Identity = state
	res.Turns = turns
	if len(turns) < 2 {
		return discard(res, ReasonTooFewTurns, "")
	}

	identified := e.mode == ModeHistory && state.Identified()
	pairs := assemble.Build(turns, identified, e.assemble)
	for i := range pairs {
		pairs[i].Category = t.Category
		pairs[i].Queue = t.Queue
		pairs[i].TicketID = t.ID
	}
	res.Pairs = pairs
	return res
}

// forwarded scans every item that could contribute a turn.
func (e *Engine) forwarded(items []ticket.Item) (string, bool) {
	for _, item := range items {
		if e.mode == ModeHistory && !e.resolver.Retained(item) {
			continue
		}
		if line, ok := e.profile.ForwardLine(strings.Split(item.Content, "\n")); ok {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

func (e *Engine) gate(item ticket.Item) (DiscardReason, string) {
	for _, att := range item.Attachments {
		if att.Unresolved {
			return ReasonUnresolvedAttachment, att.ID
		}
		if att.Filename != "" {
			return ReasonAttachment, att.Filename
		}
	}
	if !utf8.ValidString(item.Content) {
		return ReasonUndecodable, ""
	}
	if e.mode == ModeHistory && classify.IsForeignText(item.Content) {
		return ReasonForeignText, ""
	}
	return ReasonNone, ""
}

// cleanLines walks an item's lines until a history boundary, keeping the
// conversational ones. In history mode each line is also joined with the
// previous physical line: a field or banner wrapped over two lines retracts
// the pending (previously kept) line and drops the current one.
func (e *Engine) cleanLines(lines, accepted []string, legalName string, emailReply bool) []string {
	var kept []string
	var prev string
	hasPrev, pending := false, false
	lookahead := e.mode == ModeHistory

	for _, raw := range lines {
		if e.profile.IsHistoryBoundary(raw, accepted, legalName) {
			break
		}
		cur := strings.ReplaceAll(raw, "\r", "")
		if emailReply {
			cur = strings.TrimPrefix(cur, "> ")
		}
		last := prev
		prev = cur

		if e.profile.IsNoiseLine(cur) {
			pending = false
			hasPrev = true
			continue
		}
		if lookahead && hasPrev {
			joined := last + cur
			if e.profile.IsHistoryBoundary(joined, accepted, legalName) {
				if pending {
					kept = kept[:len(kept)-1]
				}
				break
			}
			if pending && e.profile.IsNoiseLine(joined) {
				kept = kept[:len(kept)-1]
				pending = false
				continue
			}
		}
		kept = append(kept, cur)
		pending, hasPrev = true, true
	}
	return kept
}

func discard(res Result, reason DiscardReason, detail string) Result {
	res.Pairs = nil
	res.Discard = reason
	res.Detail = detail
	return res
}
