// Package handler serves the operational HTTP endpoints and the search
// pass-through.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"discuit_search/internal/domain"
	"discuit_search/internal/metrics"
	"discuit_search/internal/redact"
	"discuit_search/internal/search"
)

type Reconciler interface {
	Run(ctx context.Context) (*domain.ReconcileStats, error)
	Running() bool
}

type Searcher interface {
	Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error)
	Health(ctx context.Context) error
}

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps groups the dependencies of NewRouter.
type RouterDeps struct {
	Reconciler Reconciler
	Searcher   Searcher
	DB         Pinger
	Redactor   *redact.Redactor
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	h := &Handler{
		reconciler: deps.Reconciler,
		searcher:   deps.Searcher,
		db:         deps.DB,
		redactor:   deps.Redactor,
		logger:     deps.Logger,
	}

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	r.Post("/reconcile", h.Reconcile)
	r.Get("/search", h.Search)

	return r
}

type Handler struct {
	reconciler Reconciler
	searcher   Searcher
	db         Pinger
	redactor   *redact.Redactor
	logger     *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
