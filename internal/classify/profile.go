package classify

import (
	"regexp"
	"strings"
)

// Profile bundles the rule tables for one source variant.
type Profile struct {
	noise     []rule
	worthless []rule
	forward   *regexp.Regexp
	queues    []string
}

// NewProfile builds the profile used for ticket histories fetched one ticket at
// a time. queues is the team/queue vocabulary; nil means DefaultQueues.
func NewProfile(queues []string) *Profile {
	if len(queues) == 0 {
		queues = DefaultQueues
	}
	p := &Profile{
		queues:  queues,
		forward: forwardPattern(queues),
	}
	p.noise = append(p.noise, systemLines...)
	p.noise = append(p.noise, automatedNotices...)
	p.worthless = append(p.worthless, automatedNotices...)
	p.worthless = append(p.worthless, worthlessOnly...)
	return p
}

// NewBulkProfile builds the stricter profile used for raw database records,
// which carry no item descriptions to gate on.
func NewBulkProfile(queues []string) *Profile {
	p := NewProfile(queues)
	p.noise = append(p.noise, bulkExtraNoise...)
	p.worthless = append(p.worthless, bulkExtraWorthless...)
	return p
}

// Queues returns the vocabulary the profile was built with.
func (p *Profile) Queues() []string { return p.queues }

var defaultProfile = NewProfile(nil)

// Default returns the shared history profile.
func Default() *Profile { return defaultProfile }

// IsNoiseLine reports whether line is boilerplate rather than conversation.
func (p *Profile) IsNoiseLine(line string) bool {
	_, noise := p.NoiseRule(line)
	return noise
}

// NoiseRule is IsNoiseLine that also names the rule that fired.
func (p *Profile) NoiseRule(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "blank", true
	}
	if strings.Trim(trimmed, "> \t_-") == "" {
		return "separator", true
	}
	return firstMatch(p.noise, line)
}

// IsHistoryBoundary reports whether line starts quoted, duplicated or
// signature content. accepted holds the cleaned text already taken from earlier
// items of the same ticket; legalName is the requester's resolved name or a
// placeholder.
func (p *Profile) IsHistoryBoundary(line string, accepted []string, legalName string) bool {
	_, ok := p.BoundaryRule(line, accepted, legalName)
	return ok
}

// BoundaryRule is IsHistoryBoundary that also names the rule that fired.
func (p *Profile) BoundaryRule(line string, accepted []string, legalName string) (string, bool) {
	if name, ok := firstMatch(signatureLines, line); ok {
		return name, true
	}
	if originalMessageRE.MatchString(line) {
		return "original_message", true
	}
	if len(accepted) > 0 && httpRefererRE.MatchString(line) {
		return "http_referer", true
	}
	trimmed := strings.TrimSpace(line)
	if trimmed != "" && (strings.Trim(trimmed, "_") == "" || strings.Trim(trimmed, "-") == "") {
		return "separator", true
	}
	if replyPreambleRE.MatchString(line) {
		return "reply_preamble", true
	}
	if len(accepted) == 0 || !strings.Contains(line, ">") {
		return "", false
	}
	msg := strings.TrimSpace(strings.TrimLeft(trimmed, "> \t"))
	if msg == "" {
		return "", false
	}
	if legalName != "" && !isPlaceholder(legalName) && strings.EqualFold(msg, legalName) {
		return "quoted_signature", true
	}
	for _, prev := range accepted {
		if strings.Contains(prev, msg) {
			return "quoted_reply", true
		}
	}
	return "", false
}

// IsWorthlessItem reports whether an item is pure automated notice.
func (p *Profile) IsWorthlessItem(lines []string) bool {
	for _, line := range lines {
		if _, ok := firstMatch(p.worthless, line); ok {
			return true
		}
	}
	return false
}

// IsForwardedTicket reports whether any line hands the ticket to another team.
func (p *Profile) IsForwardedTicket(lines []string) bool {
	_, ok := p.ForwardLine(lines)
	return ok
}

// ForwardLine returns the first line that reads as a hand-off.
func (p *Profile) ForwardLine(lines []string) (string, bool) {
	for _, line := range lines {
		if lookForwardRE.MatchString(line) {
			continue
		}
		if p.forward.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

func forwardPattern(queues []string) *regexp.Regexp {
	names := make([]string, len(queues))
	for i, q := range queues {
		names[i] = regexp.QuoteMeta(q)
	}
	expr := `(?i)\bforward(?:ed|ing)?\s.*?\bto\b.*?(?:\b(?:queue|group|team)\b`
	if len(names) > 0 {
		expr += `|(?:^|\W)(?:` + strings.Join(names, "|") + `)(?:\W|$)`
	}
	expr += `)`
	return regexp.MustCompile(expr)
}

// Placeholder identity values used before anything better is known.
const (
	PlaceholderName  = "name_placeholder"
	PlaceholderEmail = "email_placeholder"
)

func isPlaceholder(s string) bool {
	return s == PlaceholderName || s == PlaceholderEmail
}

// IsNoiseLine classifies line with the default profile.
func IsNoiseLine(line string) bool { return defaultProfile.IsNoiseLine(line) }

// IsHistoryBoundary checks line with the default profile.
func IsHistoryBoundary(line string, accepted []string, legalName string) bool {
	return defaultProfile.IsHistoryBoundary(line, accepted, legalName)
}

// IsWorthlessItem checks lines with the default profile.
func IsWorthlessItem(lines []string) bool { return defaultProfile.IsWorthlessItem(lines) }

// IsForwardedTicket checks lines with the default profile.
func IsForwardedTicket(lines []string) bool { return defaultProfile.IsForwardedTicket(lines) }
