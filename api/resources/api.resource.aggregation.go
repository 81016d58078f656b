// FilePath: api/resources/api.resource.aggregation.go
package resources

import (
	"net/http"

	"github.com/factoriot/hub/api/middleware"
	"github.com/factoriot/hub/internal/aggregator"
	"github.com/factoriot/hub/internal/errors"
)

// AggregationHandlers encapsulates the aggregation admin handlers
type AggregationHandlers struct {
	aggregator *aggregator.Aggregator
}

// @Summary Trigger an aggregation cycle
// @Description Run one roll-up and retention cycle immediately. Safe to
// @Description overlap with the scheduled loop.
// @Tags aggregation
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} errors.APIError
// @Router /aggregation/run [post]
func (h *AggregationHandlers) RunCycle(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.aggregator.RunCycle(r.Context()); err != nil {
		respondWithError(w, errors.NewInternalError("aggregation cycle failed", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
