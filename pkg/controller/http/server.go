package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/utils/errutil"
	"github.com/db4dd/db4dd/pkg/utils/safe"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
)

// LedgerLister lists processed documents
type LedgerLister interface {
	List(ctx context.Context) ([]*model.LedgerEntry, error)
}

// Server exposes health and pipeline statistics while watch mode runs
type Server struct {
	router  *chi.Mux
	stats   map[string]func() any
	ledger  LedgerLister
	started time.Time
}

type Options func(*Server)

// WithStats adds fn's result under name in the /stats response
func WithStats(name string, fn func() any) Options {
	return func(s *Server) {
		s.stats[name] = fn
	}
}

// WithLedger enables the /ledger endpoint
func WithLedger(l LedgerLister) Options {
	return func(s *Server) {
		s.ledger = l
	}
}

func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:  r,
		stats:   make(map[string]func() any),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Get("/stats", s.statsHandler)
	if s.ledger != nil {
		r.Get("/ledger", s.ledgerHandler)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.stats))
	for name := range s.stats {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := make(map[string]any, len(names))
	for _, name := range names {
		resp[name] = s.stats[name]()
	}
	writeJSON(w, r, resp)
}

func (s *Server) ledgerHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.List(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to list ledger"), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}
	writeJSON(w, r, map[string]any{"documents": entries})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, data)
}
