package api

import (
	"net/http"

	"github.com/okian/catalog/internal/domain/model"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	ingester Ingester
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(ing Ingester) *StatsHandler {
	return &StatsHandler{ingester: ing}
}

type statsResponse struct {
	PassID string                `json:"pass_id"`
	Stats  *model.IngestionStats `json:"stats"`
}

// HandleStats handles GET /ingest/stats requests. It runs a fresh pass and
// returns only its statistics.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest_stats"
	if r.Method != http.MethodGet {
		notFound(w, op)
		return
	}
	res, ok := runPass(w, r, op, h.ingester)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{PassID: res.PassID, Stats: res.Stats})
}
