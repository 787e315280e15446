// Package rt is a client for the ticketing system's REST 1.0 interface.
package rt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// ErrNotFound is returned when a ticket or attachment does not exist.
var ErrNotFound = errors.New("rt: not found")

var onBehalfRE = regexp.MustCompile(`\[Reply submitted on behalf of (.*?)\]`)

type Client struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(baseURL, user, password string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// Search returns the ids of tickets in queue created strictly between from
// and to (YYYY-MM-DD).
func (c *Client) Search(ctx context.Context, queue, from, to string) ([]string, error) {
	q := fmt.Sprintf("Queue = '%s' AND Created > '%s' AND Created < '%s'", queue, from, to)
	params := url.Values{"query": {q}, "format": {"i"}, "orderby": {"+id"}}
	body, err := c.get(ctx, "/search/ticket", params)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", queue, err)
	}
	if strings.Contains(body, "No matching results.") {
		return nil, nil
	}
	return parseIDList(body), nil
}

// Ticket fetches a ticket's metadata and full history.
func (c *Client) Ticket(ctx context.Context, id string) (ticket.Ticket, error) {
	body, err := c.get(ctx, "/ticket/"+url.PathEscape(id)+"/show", nil)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("show ticket %s: %w", id, err)
	}
	t := ticket.Ticket{ID: id}
	if msgs := parseMessages(body); len(msgs) > 0 {
		t.Queue = msgs[0].get("Queue")
	}
	items, err := c.History(ctx, id)
	if err != nil {
		return ticket.Ticket{}, err
	}
	t.Items = items
	return t, nil
}

// History fetches the ordered history items of a ticket. Attachment names are
// resolved one by one; a failed lookup marks the attachment Unresolved rather
// than failing the call.
func (c *Client) History(ctx context.Context, id string) ([]ticket.Item, error) {
	body, err := c.get(ctx, "/ticket/"+url.PathEscape(id)+"/history", url.Values{"format": {"l"}})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}

	var items []ticket.Item
	for _, msg := range parseMessages(body) {
		item := historyItem(msg)
		for _, ref := range parseAttachmentRefs(msg.get("Attachments")) {
			att, err := c.Attachment(ctx, id, ref.ID)
			if err != nil {
				c.logger.Debug("attachment lookup failed", "ticket", id, "attachment", ref.ID, "error", err)
				att = ticket.Attachment{ID: ref.ID, Unresolved: true}
			}
			item.Attachments = append(item.Attachments, att)
		}
		items = append(items, item)
	}
	return items, nil
}

// Attachment fetches attachment metadata. Body parts without a file name have
// an empty Filename.
func (c *Client) Attachment(ctx context.Context, ticketID, attachmentID string) (ticket.Attachment, error) {
	path := "/ticket/" + url.PathEscape(ticketID) + "/attachments/" + url.PathEscape(attachmentID)
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return ticket.Attachment{}, fmt.Errorf("attachment %s/%s: %w", ticketID, attachmentID, err)
	}
	msgs := parseMessages(body)
	if len(msgs) == 0 {
		return ticket.Attachment{}, fmt.Errorf("attachment %s/%s: empty response", ticketID, attachmentID)
	}
	return ticket.Attachment{ID: attachmentID, Filename: msgs[0].get("Filename")}, nil
}

func historyItem(msg message) ticket.Item {
	item := ticket.Item{
		Description: msg.get("Description"),
		Content:     msg.get("Content"),
		Creator:     msg.get("Creator"),
		Kind:        kindOf(msg.get("Type")),
	}
	if item.Kind == ticket.KindStatus {
		item.Content = item.Description
	}
	lines := strings.Split(item.Content, "\n")
	if m := onBehalfRE.FindStringSubmatch(lines[len(lines)-1]); m != nil {
		item.Creator = m[1]
	}
	return item
}

func kindOf(typ string) ticket.Kind {
	switch typ {
	case "Create":
		return ticket.KindCreate
	case "Correspond":
		return ticket.KindMessage
	case "Comment", "CommentEmailRecord":
		return ticket.KindComment
	case "Status":
		return ticket.KindStatus
	}
	return ticket.KindOther
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (string, error) {
	u := c.baseURL + "/REST/1.0" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("rt request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rt returned %d", resp.StatusCode)
	}

	code, body, err := splitResponse(string(raw))
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("rt status %d", code)
	}
	if first, _, _ := strings.Cut(body, "\n"); strings.HasPrefix(first, "# ") && strings.Contains(first, "does not exist") {
		return "", ErrNotFound
	}
	return body, nil
}
