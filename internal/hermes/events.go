package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// Subjects used by the reconstruction service.
const (
	SubjectReconstructRequested = "tickets.reconstruct.requested"
	SubjectPairsProduced        = "tickets.pairs.produced"
	SubjectTicketDiscarded      = "tickets.ticket.discarded"
	SubjectRunCompleted         = "tickets.run.completed"
)

// ReconstructRequest asks for one ticket to be turned into pairs.
type ReconstructRequest struct {
	RequestID string        `json:"request_id,omitempty"`
	Ticket    ticket.Ticket `json:"ticket"`
}

// PairsProduced carries the pairs built from one ticket.
type PairsProduced struct {
	RequestID string        `json:"request_id,omitempty"`
	TicketID  string        `json:"ticket_id"`
	Queue     string        `json:"queue,omitempty"`
	Pairs     []ticket.Pair `json:"pairs"`
}

// TicketDiscarded reports a ticket that produced no pairs.
type TicketDiscarded struct {
	RequestID string `json:"request_id,omitempty"`
	TicketID  string `json:"ticket_id"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// RunCompleted is published when a batch run finishes.
type RunCompleted struct {
	RunID     string         `json:"run_id"`
	Mode      string         `json:"mode"`
	Sources   []string       `json:"sources"`
	Tickets   int            `json:"tickets"`
	Discarded map[string]int `json:"discarded"`
	Pairs     int            `json:"pairs"`
	Timestamp time.Time      `json:"timestamp"`
}
