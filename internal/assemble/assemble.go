// Package assemble turns a ticket's cleaned turns into prompt/response pairs.
package assemble

import (
	"strings"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// Options tunes pair assembly.
type Options struct {
	// MergeConsecutive joins adjacent turns from the same speaker before
	// pairing. Only applies when speakers are identified.
	MergeConsecutive bool
}

// Pairs builds training pairs with default options.
func Pairs(turns []ticket.Turn, identified bool) []ticket.Pair {
	return Build(turns, identified, Options{})
}

// Build emits one pair per Assistant turn. With identified speakers the turns'
// own tags are used; otherwise turns are taken to alternate Human, Assistant
// by position. Fewer than two turns yield nil.
func Build(turns []ticket.Turn, identified bool, opts Options) []ticket.Pair {
	if len(turns) < 2 {
		return nil
	}
	if identified {
		if opts.MergeConsecutive {
			turns = Merge(turns)
		}
	} else {
		turns = Alternate(turns)
	}

	var pairs []ticket.Pair
	var history strings.Builder
	for _, t := range turns {
		if t.Speaker == ticket.Assistant {
			pairs = append(pairs, ticket.Pair{
				Prompt:   history.String() + "Assistant:",
				Chosen:   " " + t.Text,
				Rejected: ticket.Rejected,
			})
		}
		writeTurn(&history, t)
	}
	return pairs
}

// Alternate relabels turns Human, Assistant, Human, ... by position.
func Alternate(turns []ticket.Turn) []ticket.Turn {
	out := make([]ticket.Turn, len(turns))
	for i, t := range turns {
		out[i] = ticket.Turn{Speaker: ticket.Human, Text: t.Text}
		if i%2 == 1 {
			out[i].Speaker = ticket.Assistant
		}
	}
	return out
}

// Merge joins adjacent same-speaker turns with a newline.
func Merge(turns []ticket.Turn) []ticket.Turn {
	var out []ticket.Turn
	for _, t := range turns {
		if n := len(out); n > 0 && out[n-1].Speaker == t.Speaker {
			out[n-1].Text += "\n" + t.Text
			continue
		}
		out = append(out, t)
	}
	return out
}

// Render formats turns as a Human:/Assistant: transcript, one turn per line.
func Render(turns []ticket.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		writeTurn(&sb, t)
	}
	return sb.String()
}

func writeTurn(sb *strings.Builder, t ticket.Turn) {
	switch t.Speaker {
	case ticket.Human:
		sb.WriteString("Human: ")
	case ticket.Assistant:
		sb.WriteString("Assistant: ")
	default:
		sb.WriteString(string(t.Speaker) + ": ")
	}
	sb.WriteString(t.Text)
	sb.WriteString("\n")
}
