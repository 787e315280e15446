package pipeline

import (
	"fmt"
	"time"
)

// DateLayout is the date format used for search windows.
const DateLayout = "2006-01-02"

// DefaultWindowDays is the width of one search window.
const DefaultWindowDays = 90

// Window is a creation-date range. Searches treat both ends as exclusive.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) String() string {
	return w.From.Format(DateLayout) + ".." + w.To.Format(DateLayout)
}

// Windows splits [from, to] into windows of at most days days. Each window
// after the first starts one day before the previous one ended, so tickets
// created on a boundary day fall inside some window.
func Windows(from, to time.Time, days int) []Window {
	if !from.Before(to) {
		return nil
	}
	if days < 2 {
		return []Window{{From: from, To: to}}
	}
	var out []Window
	start := from
	for {
		end := start.AddDate(0, 0, days)
		if !end.Before(to) {
			out = append(out, Window{From: start, To: to})
			return out
		}
		out = append(out, Window{From: start, To: end})
		start = end.AddDate(0, 0, -1)
	}
}

// ParseRange parses a from/to date pair.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse from date: %w", err)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse to date: %w", err)
	}
	if !f.Before(t) {
		return time.Time{}, time.Time{}, fmt.Errorf("from date %s is not before to date %s", from, to)
	}
	return f, t, nil
}
