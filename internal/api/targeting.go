package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/openadstack/addecide/internal/middleware"
	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/targeting"
)

// validateTargetingResponse is the wire shape of the validation endpoint.
type validateTargetingResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateTargetingHandler handles POST /api/ads/targeting/validate. The ad
// manager calls it before saving a line item so authors get structural
// errors at edit time, not at serve time.
func (s *Server) ValidateTargetingHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "targeting_validate"
	const method = "POST"

	var rule models.TargetingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	resp := validateTargetingResponse{Valid: true}
	if err := targeting.Validate(&rule); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		s.Metrics.IncrementTargetingValidations("invalid")
	} else {
		s.Metrics.IncrementTargetingValidations("valid")
	}

	logger.Debug("targeting validated")
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	writeJSON(w, resp)
}
