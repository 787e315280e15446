package store

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

func TestPairRows(t *testing.T) {
	runID := uuid.New()
	pairs := []ticket.Pair{
		{TicketID: "7", Prompt: "Human: a\nAssistant:", Chosen: " b", Rejected: ticket.Rejected},
		{TicketID: "8", Prompt: "Human: c\nAssistant:", Chosen: " d", Rejected: ticket.Rejected, Category: "Data Depot", Queue: "TUP"},
	}

	rows := pairRows(runID, pairs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(pairColumns) {
			t.Fatalf("row %d has %d values for %d columns", i, len(row), len(pairColumns))
		}
		if row[1] != runID {
			t.Errorf("row %d run_id = %v", i, row[1])
		}
		if row[3] != int32(i) {
			t.Errorf("row %d position = %v", i, row[3])
		}
	}
	if rows[0][0] == rows[1][0] {
		t.Error("pair ids must be unique")
	}
	want := []any{"8", "Human: c\nAssistant:", " d", ticket.Rejected, "Data Depot", "TUP"}
	if got := rows[1][2:]; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("row values = %v, want %v", got, want)
	}
}

func TestPairRows_Empty(t *testing.T) {
	if rows := pairRows(uuid.New(), nil); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
