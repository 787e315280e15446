// Package api is the HTTP surface of the reconstruction service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/ticketpairs/internal/pipeline"
	"github.com/MikeSquared-Agency/ticketpairs/internal/reconstruct"
	"github.com/MikeSquared-Agency/ticketpairs/internal/store"
	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

const maxBodyBytes = 16 << 20

// RunLister reads persisted runs.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	RunPairs(ctx context.Context, runID uuid.UUID) ([]ticket.Pair, error)
}

type Server struct {
	router *chi.Mux
	port   int
	http   *http.Server
	svc    *pipeline.Service
	runs   RunLister
	logger *slog.Logger
}

// NewServer wires the routes. runs may be nil when no database is
// configured; an empty apiToken disables authentication.
func NewServer(port int, apiToken string, svc *pipeline.Service, runs RunLister, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		svc:    svc,
		runs:   runs,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(apiToken))
			r.Post("/reconstruct", s.reconstruct)
			r.Get("/runs/{id}/pairs", s.runPairs)
		})
	})

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Service    string            `json:"service"`
	Mode       string            `json:"mode"`
	Counters   pipeline.Counters `json:"counters"`
	RecentRuns []store.RunRecord `json:"recent_runs,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Service:  "ticketpairs",
		Mode:     s.svc.Mode().String(),
		Counters: s.svc.Snapshot(),
	}
	if s.runs != nil {
		limit := 10
		if v := r.URL.Query().Get("runs"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		runs, err := s.runs.RecentRuns(r.Context(), limit)
		if err != nil {
			s.logger.Warn("list recent runs failed", "error", err)
		}
		resp.RecentRuns = runs
	}
	writeJSON(w, http.StatusOK, resp)
}

type reconstructResponse struct {
	Results []reconstruct.Result `json:"results"`
	Pairs   int                  `json:"pairs"`
}

// reconstruct handles POST /api/v1/reconstruct with one ticket or an array.
func (s *Server) reconstruct(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("read body: %v", err))
		return
	}
	tickets, err := pipeline.ParseTickets(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requestID := middleware.GetReqID(r.Context())
	resp := reconstructResponse{Results: make([]reconstruct.Result, 0, len(tickets))}
	for _, t := range tickets {
		res := s.svc.Reconstruct(requestID, t)
		resp.Pairs += len(res.Pairs)
		resp.Results = append(resp.Results, res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// runPairs handles GET /api/v1/runs/{id}/pairs.
func (s *Server) runPairs(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	pairs, err := s.runs.RunPairs(r.Context(), id)
	if err != nil {
		s.logger.Error("read run pairs failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "read run pairs failed")
		return
	}
	if pairs == nil {
		pairs = []ticket.Pair{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
