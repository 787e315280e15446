package rt

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// statusLineRE matches the first line of every REST 1.0 response,
// e.g. "RT/4.4.3 200 Ok".
var statusLineRE = regexp.MustCompile(`^RT/\S+ (\d{3}) (.*)$`)

// message is one "Key: value" block of a REST 1.0 response. Keys keep their
// order of appearance.
type message struct {
	keys   []string
	fields map[string]string
}

func (m message) get(key string) string { return m.fields[key] }

// splitResponse checks the status line and returns the body.
func splitResponse(raw string) (int, string, error) {
	head, body, _ := strings.Cut(raw, "\n")
	m := statusLineRE.FindStringSubmatch(strings.TrimRight(head, "\r"))
	if m == nil {
		return 0, "", fmt.Errorf("unexpected response line %q", head)
	}
	code, _ := strconv.Atoi(m[1])
	return code, strings.TrimLeft(body, "\r\n"), nil
}

// parseMessages splits a body into "--" separated messages. Continuation
// lines are indented to the width of their key and are joined with newlines.
func parseMessages(body string) []message {
	var out []message
	for _, block := range strings.Split(body, "\n--\n") {
		msg := parseMessage(block)
		if len(msg.keys) > 0 {
			out = append(out, msg)
		}
	}
	return out
}

func parseMessage(block string) message {
	msg := message{fields: make(map[string]string)}
	var key string
	indent := 0

	sc := bufio.NewScanner(strings.NewReader(block))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if key != "" && indent > 0 && strings.HasPrefix(line, strings.Repeat(" ", indent)) {
			msg.fields[key] += "\n" + line[indent:]
			continue
		}
		if key != "" && line == "" {
			// Blank lines inside multi-line values are kept; trailing ones are
			// trimmed below.
			msg.fields[key] += "\n"
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok || strings.ContainsAny(k, " \t") {
			continue
		}
		key = k
		indent = len(k) + 2
		msg.keys = append(msg.keys, k)
		msg.fields[k] = strings.TrimPrefix(v, " ")
	}
	for k, v := range msg.fields {
		msg.fields[k] = strings.TrimRight(v, "\n")
	}
	return msg
}

// attachmentRef is one entry of a history item's Attachments field,
// "12: name (1.2k)".
type attachmentRef struct {
	ID   string
	Name string
}

func parseAttachmentRefs(v string) []attachmentRef {
	var refs []attachmentRef
	for _, line := range strings.Split(v, "\n") {
		line = strings.TrimSpace(line)
		id, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(id); err != nil {
			continue
		}
		name := strings.TrimSpace(rest)
		if i := strings.LastIndex(name, " ("); i >= 0 {
			name = name[:i]
		}
		refs = append(refs, attachmentRef{ID: id, Name: name})
	}
	return refs
}

// parseIDList reads "ticket/123" lines from an id-format search.
func parseIDList(body string) []string {
	var ids []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if id, ok := strings.CutPrefix(line, "ticket/"); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
