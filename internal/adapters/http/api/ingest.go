package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/catalog/internal/domain/model"
)

// IngestHandler runs passes on request.
type IngestHandler struct {
	ingester Ingester
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(ing Ingester) *IngestHandler {
	return &IngestHandler{ingester: ing}
}

// HandleIngest handles POST /ingest. It returns the full pass result.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	if r.Method != http.MethodPost {
		notFound(w, op)
		return
	}
	res, ok := runPass(w, r, op, h.ingester)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// runPass executes a pass and writes the error response on failure.
func runPass(w http.ResponseWriter, r *http.Request, op string, ing Ingester) (*model.Result, bool) {
	res, err := ing.Ingest(r.Context())
	switch {
	case err == nil:
		return res, true
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "ingestion_timeout", WrapKind(op, ErrIngestionTimeout, err))
	default:
		writeError(w, http.StatusBadGateway, "ingestion_failed", WrapKind(op, ErrIngestionFailed, err))
	}
	return nil, false
}
