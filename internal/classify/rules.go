// Package classify holds the line- and item-level heuristics that separate
// conversational text from ticketing-system boilerplate.
//
// Every classifier is an ordered table of named patterns evaluated by a single
// dispatch function, so the vocabulary can be inspected and tested as data.
package classify

import (
	"regexp"
	"strings"
)

// rule is a named pattern in a classification table.
type rule struct {
	name string
	re   *regexp.Regexp
}

func r(name, expr string) rule {
	return rule{name: name, re: regexp.MustCompile(expr)}
}

// firstMatch returns the name of the first rule matching line.
func firstMatch(rules []rule, line string) (string, bool) {
	for _, ru := range rules {
		if ru.re.MatchString(line) {
			return ru.name, true
		}
	}
	return "", false
}

// fieldLabels are header-ish labels the ticketing system writes into bodies.
var fieldLabels = []string{
	"Category: ", "Transaction: ", "System/Resource: ", "Requestor: ", "Queue: ",
	"Subject: ", "Owner: ", "Requestors:", " Date: ", "Status: ", "Comment by: ",
	"Full name: ", "Phone: ", "Email: ", "Comments/Feedback: ",
	"[Reply from] ", "[Opened by] ", "[Category] ", "[Resource] ", "[HTTP Referer]",
}

func fieldLabelExpr() string {
	quoted := make([]string, len(fieldLabels))
	for i, l := range fieldLabels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return strings.Join(quoted, "|")
}

// automatedNotices are lines only the ticketing system or its bots produce.
// They make a whole item worthless and are also noise line by line.
var automatedNotices = []rule{
	r("set_resolved", `This ticket is being set to resolved\.`),
	r("no_content", `This transaction appears to have no content`),
	r("transferred", `A ticket has been transferred to .* Queue\.`),
	r("ticket_resolved", `Ticket resolved`),
	r("marking_resolved", `Marking as resolved`),
	r("assigned", `A ticket has been assigned to you`),
	r("team_take_look", `I will ask one of our team members to take a look at this\.`),
}

// worthlessOnly are notices that disqualify an item but are not stripped
// line by line when they appear inside otherwise useful text.
var worthlessOnly = []rule{
	r("team_look_at", `have the team look at`),
	r("team_look_into", `ask one of our team members to look into this`),
	r("bot_signature", `RTBot`),
	r("auto_generated", `This message has been automatically generated`),
	r("reopens", `Responding to this email will re-open the ticket`),
	r("request_resolved", `Your request has been resolved`),
	r("solved", `has been solved`),
}

var systemLines = []rule{
	r("via", `On .*? via `),
	r("subscribe", `Subscribe to user news:`),
	r("field_label", fieldLabelExpr()),
	r("ticket_banner", `Ticket <.*?>`),
	r("acted_upon", `Request .*? was acted upon\.$`),
	r("created", `A ticket has been created in the .* Queue\.`),
	r("status_changed", `Status changed from .* to .* by .*`),
	r("reaction", `\[.*\].* reacted to your message:`),
}

// bulkExtraNoise are dropped by the raw-database variant, where bracketed tags
// and reply preambles are never conversational.
var bulkExtraNoise = []rule{
	r("bracket_tag", `\[.*?\]`),
	r("wrote", `On .*? wrote:$`),
}

var bulkExtraWorthless = []rule{
	r("resolved", `resolved`),
}

var (
	originalMessageRE = regexp.MustCompile(`Original Message`)
	httpRefererRE     = regexp.MustCompile(`HTTP Referer`)
	replyPreambleRE   = regexp.MustCompile(
		`On (?:Mon|Tue|Wed|Thu|Fri|Sat|Sun)\b.*\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\b.*\b\d{4}\b.*wrote:`)
)

// signatureLines end the visible part of a message: chat-invite footers that
// staff paste under their replies.
var signatureLines = []rule{
	r("slack_footer", `For faster response, please message me on Slack`),
	r("slack_invite", `zt-1owto8ayr-NWxjKL00u~BiptwP6Yyomw`),
}

var lookForwardRE = regexp.MustCompile(`(?i)look forward to`)
