// Package speaker decides who wrote each correspondence item of a ticket and
// tracks the requester's identity as it is revealed over the history.
package speaker

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/ticketpairs/internal/classify"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// UnknownCreator is the creator name used until the requester is identified.
const UnknownCreator = "rt"

const (
	createdMarker       = "Ticket created by"
	correspondenceAdded = "Correspondence added by"
	replyFromMarker     = "[Reply from]"
	openedByMarker      = "[Opened by]"
	requestorMarker     = "Requestor"
)

// Actors names the ticketing system's own accounts.
type Actors struct {
	// System relays replies on behalf of requesters.
	System string
	// Bot posts identity summaries as comments.
	Bot string
}

// DefaultActors are the account names of the production ticketing system.
var DefaultActors = Actors{System: "rtprod", Bot: "rtbot"}

// IdentityState is what is known about the ticket's requester so far. It is
// passed by value; Resolve returns the updated copy.
type IdentityState struct {
	CreatorName  string `json:"creator_name"`
	CreatorEmail string `json:"creator_email"`
	LegalName    string `json:"legal_name"`
}

// NewState returns the state every ticket starts with.
func NewState() IdentityState {
	return IdentityState{
		CreatorName:  UnknownCreator,
		CreatorEmail: classify.PlaceholderEmail,
		LegalName:    classify.PlaceholderName,
	}
}

// Identified reports whether a named requester was ever resolved.
func (s IdentityState) Identified() bool {
	return s.CreatorName != "" && s.CreatorName != UnknownCreator
}

// Decision is the resolver's verdict for one item.
type Decision struct {
	// Retain is false for items that never contribute a turn.
	Retain  bool
	Speaker ticket.Speaker
	// Content is the body to classify, with creation preambles removed.
	Content string
	// EmailReply is set for replies that arrived by mail and carry "> " quoting.
	EmailReply bool
}

var (
	botUsernameRE = regexp.MustCompile(`Username:\.*[ \t]*(\S*)`)
	botEmailRE    = regexp.MustCompile(`\bEmail:\.*[ \t]*(\S*)`)
	botNameRE     = regexp.MustCompile(`\bName:\.*[ \t]*(\S*)`)
	emailReplyRE  = regexp.MustCompile(`Correspondence added by .*@.*\..*`)
	refererRE     = regexp.MustCompile(`(?s)^.*\[HTTP Referer\][^\n]*\n?`)
)

// Resolver assigns speakers. It holds no per-ticket state and is safe to share.
type Resolver struct {
	actors Actors
}

// NewResolver creates a resolver for the given system accounts. Empty fields
// fall back to DefaultActors.
func NewResolver(actors Actors) *Resolver {
	if actors.System == "" {
		actors.System = DefaultActors.System
	}
	if actors.Bot == "" {
		actors.Bot = DefaultActors.Bot
	}
	return &Resolver{actors: actors}
}

// Retained reports whether item can ever contribute a turn. It depends only
// on the item itself, not on identity state.
func (r *Resolver) Retained(item ticket.Item) bool {
	desc := item.Description
	relay := correspondenceAdded + " " + r.actors.System
	switch {
	case strings.Contains(desc, createdMarker):
		return true
	case strings.Contains(desc, relay):
		return strings.HasPrefix(item.Content, replyFromMarker)
	case strings.Contains(desc, correspondenceAdded):
		return true
	}
	return false
}

// Resolve applies item to state and decides who wrote it.
func (r *Resolver) Resolve(state IdentityState, item ticket.Item) (Decision, IdentityState) {
	desc, content := item.Description, item.Content

	if desc == "Comments added by "+r.actors.Bot {
		state = botIdentity(state, content)
	}

	if !r.Retained(item) {
		return Decision{}, state
	}

	if state.CreatorEmail == classify.PlaceholderEmail {
		if email, ok := requesterEmail(desc, content); ok {
			state.CreatorEmail = email
		}
	}

	d := Decision{
		Retain:     true,
		Speaker:    ticket.Assistant,
		Content:    content,
		EmailReply: emailReplyRE.MatchString(desc),
	}

	switch {
	case strings.Contains(desc, createdMarker):
		d.Speaker = ticket.Human
		if !state.Identified() {
			state.CreatorName = r.creatorName(desc, content)
		}
		d.Content = refererRE.ReplaceAllString(content, "")
	case mentionsRequester(state, desc):
		d.Speaker = ticket.Human
	case item.Creator != "" && state.Identified() && item.Creator == state.CreatorName:
		d.Speaker = ticket.Human
	case strings.Contains(desc, r.actors.System) && strings.HasPrefix(content, replyFromMarker):
		if relayedName(content) == state.CreatorName && state.Identified() {
			d.Speaker = ticket.Human
		}
	}
	return d, state
}

// mentionsRequester skips sentinel values: the bare "rt" would otherwise match
// the system account in every relayed description.
func mentionsRequester(state IdentityState, desc string) bool {
	if state.Identified() && strings.Contains(desc, state.CreatorName) {
		return true
	}
	return state.CreatorEmail != classify.PlaceholderEmail && state.CreatorEmail != "" &&
		strings.Contains(desc, state.CreatorEmail)
}

// botIdentity reads the Username/Email/Name summary the bot posts when a
// ticket is opened. Any non-empty field it finds overwrites the current
// value; empty fields leave it alone.
func botIdentity(state IdentityState, content string) IdentityState {
	if !botUsernameRE.MatchString(content) {
		return state
	}
	if v := botField(botUsernameRE, content); v != "" {
		state.CreatorName = v
	}
	if v := botField(botEmailRE, content); v != "" {
		state.CreatorEmail = v
	}
	if v := botField(botNameRE, content); v != "" {
		state.LegalName = v
	}
	return state
}

func botField(re *regexp.Regexp, content string) string {
	if m := re.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// requesterEmail finds the requester's address in a portal-created ticket
// ("[Opened by] name <addr>") or a mail-created one ("Requestor: name (addr)").
func requesterEmail(desc, content string) (string, bool) {
	if strings.Contains(desc, createdMarker) && strings.Contains(content, openedByMarker) {
		return between(content, "<", ">")
	}
	if strings.Contains(content, requestorMarker) {
		return between(content, "(", ")")
	}
	return "", false
}

func (r *Resolver) creatorName(desc, content string) string {
	if !strings.Contains(desc, r.actors.System) {
		if f := strings.Fields(desc); len(f) > 0 {
			return f[len(f)-1]
		}
	}
	if v, ok := lineAfter(content, openedByMarker+" "); ok && v != "" {
		return v
	}
	if v, ok := lineAfter(content, requestorMarker+": "); ok {
		if i := strings.Index(v, "("); i >= 0 {
			v = v[:i]
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return UnknownCreator
}

func relayedName(content string) string {
	v, _ := lineAfter(content, replyFromMarker+" ")
	return strings.TrimSpace(v)
}

// lineAfter returns the rest of the line following the first marker.
func lineAfter(s, marker string) (string, bool) {
	_, rest, ok := strings.Cut(s, marker)
	if !ok {
		return "", false
	}
	line, _, _ := strings.Cut(rest, "\n")
	return strings.TrimRight(line, "\r"), true
}

func between(s, open, close string) (string, bool) {
	_, rest, ok := strings.Cut(s, open)
	if !ok {
		return "", false
	}
	v, _, ok := strings.Cut(rest, close)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}
