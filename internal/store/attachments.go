package store

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/ticketpairs/internal/dedup"
)

// AttachmentFilter narrows ListAttachments by creation time. Zero values are
// open bounds.
type AttachmentFilter struct {
	From time.Time
	To   time.Time
}

// ListAttachments reads mail records from the ticketing system's Attachments
// table in id order.
func (s *Store) ListAttachments(ctx context.Context, f AttachmentFilter) ([]dedup.RawRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(subject, ''), COALESCE(headers, ''), COALESCE(content, '')
		FROM attachments
		WHERE ($1::timestamptz IS NULL OR created >= $1)
		  AND ($2::timestamptz IS NULL OR created < $2)
		ORDER BY id`,
		nullTime(f.From), nullTime(f.To),
	)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var out []dedup.RawRecord
	for rows.Next() {
		var r dedup.RawRecord
		if err := rows.Scan(&r.ID, &r.Subject, &r.Headers, &r.Content); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
