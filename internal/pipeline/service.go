package pipeline

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/ticketpairs/internal/hermes"
	"github.com/MikeSquared-Agency/ticketpairs/internal/reconstruct"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// Counters are the cumulative totals of a long-running service.
type Counters struct {
	Requests  int            `json:"requests"`
	Invalid   int            `json:"invalid"`
	Tickets   int            `json:"tickets"`
	Discarded map[string]int `json:"discarded"`
	Pairs     int            `json:"pairs"`
	Since     time.Time      `json:"since"`
}

// Service reconstructs tickets on demand, from the message bus or the HTTP
// API, and publishes the outcome.
type Service struct {
	engine *reconstruct.Engine
	pub    Publisher
	logger *slog.Logger

	mu       sync.Mutex
	counters Counters
}

// NewService creates a service. pub may be nil.
func NewService(engine *reconstruct.Engine, pub Publisher, logger *slog.Logger) *Service {
	return &Service{
		engine: engine,
		pub:    pub,
		logger: logger,
		counters: Counters{
			Discarded: make(map[string]int),
			Since:     time.Now().UTC(),
		},
	}
}

// HandleRequest is the handler for tickets.reconstruct.requested.
func (s *Service) HandleRequest(subject string, data []byte) {
	var req hermes.ReconstructRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("invalid reconstruct request", "subject", subject, "error", err)
		s.mu.Lock()
		s.counters.Requests++
		s.counters.Invalid++
		s.mu.Unlock()
		return
	}
	s.Reconstruct(req.RequestID, req.Ticket)
}

// Reconstruct processes one ticket, updates the counters and publishes the
// pairs or the discard.
func (s *Service) Reconstruct(requestID string, t ticket.Ticket) reconstruct.Result {
	res := s.engine.Reconstruct(t)

	s.mu.Lock()
	s.counters.Requests++
	s.counters.Tickets++
	if res.Discarded() {
		s.counters.Discarded[string(res.Discard)]++
	}
	s.counters.Pairs += len(res.Pairs)
	s.mu.Unlock()

	if res.Discarded() {
		s.logger.Info("ticket discarded", "request_id", requestID, "ticket", t.ID, "reason", res.Discard, "detail", res.Detail)
		s.publish(hermes.SubjectTicketDiscarded, hermes.TicketDiscarded{
			RequestID: requestID,
			TicketID:  t.ID,
			Reason:    string(res.Discard),
			Detail:    res.Detail,
		})
		return res
	}

	s.logger.Info("ticket reconstructed", "request_id", requestID, "ticket", t.ID, "pairs", len(res.Pairs))
	s.publish(hermes.SubjectPairsProduced, hermes.PairsProduced{
		RequestID: requestID,
		TicketID:  t.ID,
		Queue:     t.Queue,
		Pairs:     res.Pairs,
	})
	return res
}

func (s *Service) publish(subject string, ev any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(subject, ev); err != nil {
		s.logger.Warn("failed to publish", "subject", subject, "error", err)
	}
}

// Snapshot returns a copy of the counters.
func (s *Service) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters
	c.Discarded = make(map[string]int, len(s.counters.Discarded))
	for k, v := range s.counters.Discarded {
		c.Discarded[k] = v
	}
	return c
}

// Mode returns the engine's mode.
func (s *Service) Mode() reconstruct.Mode { return s.engine.Mode() }
