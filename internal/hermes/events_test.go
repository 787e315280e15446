package hermes

import (
	"encoding/json"
	"testing"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

func TestReconstructRequestParsing(t *testing.T) {
	raw := `{
		"request_id": "req-1",
		"ticket": {
			"id": "42",
			"queue": "DesignSafe-ci",
			"items": [
				{"description": "Ticket created by jdoe", "content": "VM won't boot", "kind": "create"}
			]
		}
	}`

	var req ReconstructRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to parse ReconstructRequest: %v", err)
	}
	if req.RequestID != "req-1" {
		t.Errorf("expected request_id 'req-1', got '%s'", req.RequestID)
	}
	if req.Ticket.ID != "42" || req.Ticket.Queue != "DesignSafe-ci" {
		t.Errorf("unexpected ticket %+v", req.Ticket)
	}
	if len(req.Ticket.Items) != 1 || req.Ticket.Items[0].Kind != ticket.KindCreate {
		t.Errorf("unexpected items %+v", req.Ticket.Items)
	}
}

func TestPairsProducedShape(t *testing.T) {
	ev := PairsProduced{
		TicketID: "42",
		Pairs: []ticket.Pair{{
			Prompt:   "Human: hi\nAssistant:",
			Chosen:   " hello",
			Rejected: ticket.Rejected,
			TicketID: "42",
		}},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if _, ok := generic["request_id"]; ok {
		t.Error("empty request_id should be omitted")
	}
	pairs, ok := generic["pairs"].([]any)
	if !ok || len(pairs) != 1 {
		t.Fatalf("expected one pair, got %v", generic["pairs"])
	}
	pair := pairs[0].(map[string]any)
	if pair["chosen"] != " hello" {
		t.Errorf("expected chosen ' hello', got %v", pair["chosen"])
	}
	if _, ok := pair["TicketID"]; ok {
		t.Error("ticket id must not leak into pair JSON")
	}
}

func TestSubjectConstants(t *testing.T) {
	subjects := map[string]string{
		SubjectReconstructRequested: "tickets.reconstruct.requested",
		SubjectPairsProduced:        "tickets.pairs.produced",
		SubjectTicketDiscarded:      "tickets.ticket.discarded",
		SubjectRunCompleted:         "tickets.run.completed",
	}
	for got, want := range subjects {
		if got != want {
			t.Errorf("expected subject %q, got %q", want, got)
		}
	}
}
