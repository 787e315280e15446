package dedup

import (
	"testing"
)

func rec(key, content string) Record {
	return Record{TicketKey: key, Content: content}
}

func TestParseHeaders(t *testing.T) {
	raw := "From: Jane <jane@example.edu>\r\nX-RT-Ticket: tacc.utexas.edu #123\nSubject: a: b\n\n: orphan\nX-RT-Ticket: tacc.utexas.edu #124"
	h := ParseHeaders(raw)
	if h["From"] != "Jane <jane@example.edu>" {
		t.Errorf("From = %q", h["From"])
	}
	if h["Subject"] != "a: b" {
		t.Errorf("Subject = %q, value should keep later separators", h["Subject"])
	}
	if h[TicketHeader] != "tacc.utexas.edu #124" {
		t.Errorf("later header should win, got %q", h[TicketHeader])
	}
	if _, ok := h[""]; ok {
		t.Error("empty key should be ignored")
	}
}

func TestPrepare(t *testing.T) {
	hdr := "X-RT-Ticket: t #1\n"
	raw := []RawRecord{
		{ID: 1, Subject: "Help", Headers: hdr, Content: []byte("hello\n> quoted\n\nworld")},
		{ID: 2, Subject: "", Headers: hdr, Content: []byte("x")},
		{ID: 3, Subject: "AutoReply: got it", Headers: hdr, Content: []byte("x")},
		{ID: 4, Subject: "[t #1] Resolved: Help", Headers: hdr, Content: []byte("x")},
		{ID: 5, Subject: "Help", Headers: hdr, Content: []byte{0xff, 0xfe, 'a'}},
		{ID: 6, Subject: "Help", Headers: "From: x", Content: []byte("x")},
	}
	out, stats := Prepare(raw)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Content != "hello\nworld\n" {
		t.Errorf("Content = %q", out[0].Content)
	}
	if out[0].TicketKey != "t #1" {
		t.Errorf("TicketKey = %q", out[0].TicketKey)
	}
	want := Stats{Total: 6, Subject: 3, DecodeErrors: 1, NoTicket: 1, Kept: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestGroup_StrictSubstringKeepsLonger(t *testing.T) {
	a := rec("1", "Please try rebooting.\n")
	b := rec("1", "Thanks.\nPlease try rebooting.\nBest\n")
	threads := Group([]Record{a, b})
	if len(threads) != 1 || len(threads[0].Records) != 1 {
		t.Fatalf("threads = %+v", threads)
	}
	if threads[0].Records[0].Content != b.Content {
		t.Errorf("kept %q, want the longer record", threads[0].Records[0].Content)
	}
	if threads[0].Duplicates != 1 {
		t.Errorf("Duplicates = %d", threads[0].Duplicates)
	}
}

func TestGroup_Rules(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    []string
	}{
		{"identical", []Record{rec("1", "a\n"), rec("1", "a\n")}, []string{"a\n"}},
		{"shorter later", []Record{rec("1", "abc\n"), rec("1", "b")}, []string{"abc\n"}},
		{"longer later", []Record{rec("1", "b"), rec("1", "abc\n")}, []string{"abc\n"}},
		{"distinct", []Record{rec("1", "q\n"), rec("1", "a\n")}, []string{"q\n", "a\n"}},
		{"only compares last kept", []Record{rec("1", "q\n"), rec("1", "a\n"), rec("1", "q\n")}, []string{"q\n", "a\n", "q\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threads := Group(tt.records)
			if len(threads) != 1 {
				t.Fatalf("expected 1 thread, got %d", len(threads))
			}
			got := threads[0].Records
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Content != tt.want[i] {
					t.Errorf("record %d = %q, want %q", i, got[i].Content, tt.want[i])
				}
			}
		})
	}
}

func TestGroup_FirstSeenOrder(t *testing.T) {
	threads := Group([]Record{rec("b", "1"), rec("a", "2"), rec("b", "3")})
	if len(threads) != 2 || threads[0].Key != "b" || threads[1].Key != "a" {
		t.Fatalf("threads = %+v", threads)
	}
	if len(threads[0].Records) != 2 {
		t.Errorf("thread b has %d records", len(threads[0].Records))
	}
}

func TestSplitStandalone(t *testing.T) {
	threads := Group([]Record{rec("1", "q"), rec("1", "a"), rec("2", "alone")})
	multi, standalone := SplitStandalone(threads)
	if len(multi) != 1 || multi[0].Key != "1" {
		t.Errorf("multi = %+v", multi)
	}
	if len(standalone) != 1 || standalone[0].Key != "2" {
		t.Errorf("standalone = %+v", standalone)
	}
}

func TestStripQuoted(t *testing.T) {
	if got := StripQuoted("> a\nb\n\n>c\nd"); got != "b\nd\n" {
		t.Errorf("StripQuoted = %q", got)
	}
}
