// Package dedup prepares raw mail records from the ticketing database: it
// filters unusable records, groups them by ticket and collapses records whose
// content is contained in a neighbour's.
package dedup

import (
	"strings"
	"unicode/utf8"
)

// TicketHeader is the mail header that carries the ticket id.
const TicketHeader = "X-RT-Ticket"

// RawRecord is one row of the ticketing system's attachment table.
type RawRecord struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Headers string `json:"headers"`
	Content []byte `json:"content"`
}

// Record is a usable mail record with parsed headers and cleaned content.
type Record struct {
	ID        int64             `json:"id"`
	TicketKey string            `json:"ticket_key"`
	Subject   string            `json:"subject"`
	Headers   map[string]string `json:"headers"`
	Content   string            `json:"content"`
}

// Stats counts what Prepare dropped.
type Stats struct {
	Total        int `json:"total"`
	Subject      int `json:"dropped_subject"`
	DecodeErrors int `json:"decode_errors"`
	NoTicket     int `json:"no_ticket"`
	Kept         int `json:"kept"`
}

// Thread is the de-duplicated record stream of one ticket.
type Thread struct {
	Key        string   `json:"key"`
	Records    []Record `json:"records"`
	Duplicates int      `json:"duplicates"`
}

// ParseHeaders reads "Key: value" lines. Later keys win; lines with an empty
// key are ignored.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		key, val, _ := strings.Cut(line, ": ")
		if key == "" {
			continue
		}
		headers[key] = strings.TrimRight(val, "\r")
	}
	return headers
}

// Prepare filters raw records and cleans their content. Records with an empty
// subject, auto-replies, resolution notices, non UTF-8 content and records
// without a ticket header are dropped.
func Prepare(raw []RawRecord) ([]Record, Stats) {
	var out []Record
	stats := Stats{Total: len(raw)}
	for _, r := range raw {
		if !usefulSubject(r.Subject) {
			stats.Subject++
			continue
		}
		if !utf8.Valid(r.Content) {
			stats.DecodeErrors++
			continue
		}
		headers := ParseHeaders(r.Headers)
		key, ok := headers[TicketHeader]
		if !ok {
			stats.NoTicket++
			continue
		}
		out = append(out, Record{
			ID:        r.ID,
			TicketKey: key,
			Subject:   r.Subject,
			Headers:   headers,
			Content:   StripQuoted(string(r.Content)),
		})
	}
	stats.Kept = len(out)
	return out, stats
}

func usefulSubject(s string) bool {
	return s != "" && !strings.Contains(s, "AutoReply") && !strings.Contains(s, "Resolved")
}

// StripQuoted drops empty lines and lines starting with '>'. Every kept line
// ends in a newline.
func StripQuoted(content string) string {
	var sb strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if line == "" || line[0] == '>' {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Group collects records by ticket key in first-seen order. Each record is
// compared with the last one kept for its ticket: an identical or contained
// record is dropped, and a record containing the last one replaces it.
func Group(records []Record) []Thread {
	index := make(map[string]int)
	var threads []Thread
	for _, rec := range records {
		i, ok := index[rec.TicketKey]
		if !ok {
			index[rec.TicketKey] = len(threads)
			threads = append(threads, Thread{Key: rec.TicketKey, Records: []Record{rec}})
			continue
		}
		th := &threads[i]
		last := th.Records[len(th.Records)-1].Content
		switch {
		case last == rec.Content, strings.Contains(last, rec.Content):
			th.Duplicates++
			continue
		case strings.Contains(rec.Content, last):
			th.Records = th.Records[:len(th.Records)-1]
			th.Duplicates++
		}
		th.Records = append(th.Records, rec)
	}
	return threads
}

// SplitStandalone separates threads with a single record, which have no
// response to learn from.
func SplitStandalone(threads []Thread) (multi, standalone []Thread) {
	for _, th := range threads {
		if len(th.Records) == 1 {
			standalone = append(standalone, th)
			continue
		}
		multi = append(multi, th)
	}
	return multi, standalone
}
