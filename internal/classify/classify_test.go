package classify

import (
	"strings"
	"testing"
)

func TestIsNoiseLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"", true},
		{"   \t ", true},
		{">>>", true},
		{"> > >", true},
		{"______", true},
		{"------", true},
		{"Status: resolved", true},
		{"Owner: nobody", true},
		{"Requestor: Jane Doe (jane@example.edu)", true},
		{"[Opened by] jdoe", true},
		{"[Category] Data Depot", true},
		{"Ticket <URL: https://tickets.example.org/Ticket/Display.html?id=123 >", true},
		{"Request 123 was acted upon.", true},
		{"A ticket has been created in the DesignSafe-ci Queue.", true},
		{"Status changed from 'open' to 'resolved' by jdoe", true},
		{"[#design] Jane reacted to your message:", true},
		{"On Tuesday via the portal someone wrote", true},
		{"Subscribe to user news: https://example.org", true},
		{"Ticket resolved", true},
		{"Hi, my VM won't boot", false},
		{"Please try rebooting.", false},
		{"The status of my job is unclear", false},
	}
	for _, tt := range tests {
		if got := IsNoiseLine(tt.line); got != tt.want {
			t.Errorf("IsNoiseLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestNoiseRule_NamesRule(t *testing.T) {
	name, ok := Default().NoiseRule("Owner: nobody")
	if !ok || name != "field_label" {
		t.Errorf("NoiseRule = %q, %v; want field_label, true", name, ok)
	}
}

func TestBulkProfile_DropsBracketTagsAndPreambles(t *testing.T) {
	p := NewBulkProfile(nil)
	if !p.IsNoiseLine("[tacc.utexas.edu #123] job failed") {
		t.Error("bulk profile should drop bracket-tagged lines")
	}
	if !p.IsNoiseLine("On Mon, Jan 8, 2024 at 9:00 AM Jane wrote:") {
		t.Error("bulk profile should drop reply preambles")
	}
	if Default().IsNoiseLine("[tacc.utexas.edu #123] job failed") {
		t.Error("history profile should keep bracket-tagged prose")
	}
}

func TestIsHistoryBoundary(t *testing.T) {
	accepted := []string{"Hi, my VM won't boot", "Please try rebooting."}

	tests := []struct {
		name     string
		line     string
		accepted []string
		want     bool
	}{
		{"original message", "-----Original Message-----", nil, true},
		{"underscore separator", "________________________________", nil, true},
		{"dash separator", "----------", nil, true},
		{"reply preamble", "On Mon, Jan 8, 2024 at 10:02 AM Jane Doe <jane@example.edu> wrote:", nil, true},
		{"reply preamble day first", "On Tue, 9 Jan 2024 14:11:02 +0000 support wrote:", nil, true},
		{"slack footer", "For faster response, please message me on Slack", nil, true},
		{"referer before content", "[HTTP Referer] https://portal.example.org", nil, false},
		{"referer after content", "[HTTP Referer] https://portal.example.org", accepted, true},
		{"quoted earlier reply", "> Please try rebooting.", accepted, true},
		{"quoted earlier reply nested", ">> Please try rebooting.", accepted, true},
		{"quoted unseen text", "> Something brand new", accepted, false},
		{"quote without history", "> Please try rebooting.", nil, false},
		{"plain repeated text", "Please try rebooting.", accepted, false},
		{"bare quote marker", ">", accepted, false},
		{"plain line", "Thanks, that fixed it", accepted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHistoryBoundary(tt.line, tt.accepted, PlaceholderName); got != tt.want {
				t.Errorf("IsHistoryBoundary(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestIsHistoryBoundary_QuotedLegalName(t *testing.T) {
	accepted := []string{"earlier text"}
	if !IsHistoryBoundary("> Jane", accepted, "Jane") {
		t.Error("quoted requester name should end the item")
	}
	if IsHistoryBoundary("> Jane", accepted, PlaceholderName) {
		t.Error("placeholder legal name must never match")
	}
}

func TestIsWorthlessItem(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  bool
	}{
		{"resolution notice", []string{"Hello,", "This ticket is being set to resolved.", "Thanks"}, true},
		{"no content", []string{"This transaction appears to have no content"}, true},
		{"bot", []string{"RTBot here"}, true},
		{"auto generated", []string{"This message has been automatically generated"}, true},
		{"reopen footer", []string{"Responding to this email will re-open the ticket."}, true},
		{"solved", []string{"Your issue has been solved, closing."}, true},
		{"team look", []string{"I'll have the team look at this."}, true},
		{"real reply", []string{"Please try rebooting.", "Best, Support"}, false},
		{"bare resolved word", []string{"This resolved my problem"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWorthlessItem(tt.lines); got != tt.want {
				t.Errorf("IsWorthlessItem = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBulkProfile_ResolvedIsWorthless(t *testing.T) {
	if !NewBulkProfile(nil).IsWorthlessItem([]string{"This resolved my problem"}) {
		t.Error("bulk profile treats any 'resolved' mention as worthless")
	}
}

func TestIsForwardedTicket(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"I am forwarding this to the Security team.", true},
		{"I've forwarded your request to the Allocations queue", true},
		{"Forwarding to the HPC group now", true},
		{"We forwarded this to Frontera admins.", true},
		{"I will forward it to Web & Mobile Apps for review", true},
		{"We look forward to working with you on this team effort", false},
		{"I look forward to hearing from the team", false},
		{"Please forward me the error output", false},
		{"Moving forward, try the new queue", false},
		{"---------- Forwarded message ---------", false},
	}
	for _, tt := range tests {
		if got := IsForwardedTicket([]string{tt.line}); got != tt.want {
			t.Errorf("IsForwardedTicket(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestForwardLine_CustomVocabulary(t *testing.T) {
	p := NewProfile([]string{"Storage Ops"})
	line, ok := p.ForwardLine([]string{"hello", "I forwarded this to Storage Ops."})
	if !ok {
		t.Fatal("expected forward detection with custom vocabulary")
	}
	if !strings.Contains(line, "Storage Ops") {
		t.Errorf("ForwardLine returned %q", line)
	}
	if p.IsForwardedTicket([]string{"I forwarded this to Frontera."}) {
		t.Error("default vocabulary should not apply to a custom profile")
	}
}

func TestCategoryOf(t *testing.T) {
	lines := []string{"[Opened by] jdoe", "[Category] Data Depot", "[Category] Other"}
	if got := CategoryOf(lines); got != "Data Depot" {
		t.Errorf("CategoryOf = %q, want %q", got, "Data Depot")
	}
	if got := CategoryOf([]string{"nothing here"}); got != "" {
		t.Errorf("CategoryOf = %q, want empty", got)
	}
}

func TestQueueOf(t *testing.T) {
	p := Default()
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"created notice", []string{"A ticket has been created in the DesignSafe-ci Queue."}, "DesignSafe-ci"},
		{"transferred notice", []string{"A ticket has been transferred to the Life Sciences Queue."}, "Life Sciences"},
		{"changed notice", []string{"Queue changed from 'General' to 'Frontera' by jdoe"}, "Frontera"},
		{"vocabulary mention", []string{"my job on Frontera keeps failing"}, "Frontera"},
		{"notice beats mention", []string{"about Frontera", "A ticket has been created in the TUP Queue."}, "TUP"},
		{"nothing", []string{"hello"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.QueueOf(tt.lines); got != tt.want {
				t.Errorf("QueueOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsForeignText(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"plain ascii text", false},
		{"Mi máquina no arranca", true},
		{"Grüße aus München", true},
		{"It’s broken — again", false},
		{"日本語", false},
	}
	for _, tt := range tests {
		if got := IsForeignText(tt.content); got != tt.want {
			t.Errorf("IsForeignText(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
