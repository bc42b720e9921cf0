// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/catalog/internal/domain/model"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Ingest(ctx context.Context) (*model.Result, error)
}

// Server wires HTTP routes for the catalog API.
type Server struct {
	healthHandler *HealthHandler
	ingestHandler *IngestHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(ing Ingester) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		ingestHandler: NewIngestHandler(ing),
		statsHandler:  NewStatsHandler(ing),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/ingest/stats", MetricsMiddleware(s.statsHandler.HandleStats, "ingest_stats"))
	mux.HandleFunc("/ingest", MetricsMiddleware(s.ingestHandler.HandleIngest, "ingest"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// notFound answers a request whose method has no route.
func notFound(w http.ResponseWriter, op string) {
	writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
}
