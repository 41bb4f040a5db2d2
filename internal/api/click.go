package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/middleware"
)

// ClickTrackHandler handles GET /api/ads/track/click: it records the click
// and 302s the browser to the creative's destination URL.
func (s *Server) ClickTrackHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ClickTrackHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/api/ads/track/click"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "click"
	const method = "GET"

	q := r.URL.Query()
	lineItemID := q.Get("line_item_id")
	creativeID := q.Get("creative_id")
	if lineItemID == "" {
		logger.Warn("missing line_item_id")
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "line_item_id required", http.StatusBadRequest)
		return
	}

	span.SetAttributes(
		attribute.String("line_item_id", lineItemID),
		attribute.String("creative_id", creativeID),
	)

	deviceType := deviceTypeFromUA(r.UserAgent())
	s.recordEvent(ctx, logger, analytics.Event{
		EventType:  analytics.EventClick,
		LineItemID: analytics.StrPtr(lineItemID),
		CreativeID: analytics.StrPtr(creativeID),
		AnonID:     q.Get("anon_id"),
		DeviceType: analytics.StrPtr(deviceType),
	})
	s.Metrics.IncrementEvent(analytics.EventClick)

	// Destination: explicit redirect param first, then the creative's
	// configured click URL.
	dest := q.Get("redirect")
	if dest == "" && s.PG != nil {
		li, err := s.PG.GetLineItem(ctx, lineItemID)
		switch {
		case err == nil:
			dest = li.CreativeClickURL
		case errors.Is(err, db.ErrNotFound):
			logger.Warn("click for unknown line item", zap.String("line_item_id", lineItemID))
		default:
			logger.Error("click line item lookup", zap.Error(err), zap.String("line_item_id", lineItemID))
		}
	}
	if dest == "" || !validRedirect(dest) {
		s.Metrics.IncrementRequests(endpoint, method, "204")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "302")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	http.Redirect(w, r, dest, http.StatusFound)
}

// validRedirect rejects destinations that are not absolute http(s) URLs, so
// the endpoint cannot be abused as an open redirector to other schemes.
func validRedirect(dest string) bool {
	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
