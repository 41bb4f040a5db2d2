package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/middleware"
	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/observability"
)

var tracer = observability.Tracer("api")

// decodeDecisionRequest reads and unmarshals a decision request body.
func decodeDecisionRequest(r *http.Request) (*models.DecisionRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	defer func() {
		_ = r.Body.Close()
	}()

	var req models.DecisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &req, nil
}

// DecideHandler handles POST /api/ads/decide requests.
func (s *Server) DecideHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "DecideHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/api/ads/decide"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "decide"
	const method = "POST"

	req, err := decodeDecisionRequest(r)
	if err != nil {
		logger.Error("decode request", zap.Error(err), zap.String("event_type", analytics.EventAdRequest))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if req.PlacementCode == "" {
		logger.Error("missing placement_code", zap.String("event_type", analytics.EventAdRequest))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "placement_code required", http.StatusBadRequest)
		return
	}
	if req.AnonID == "" {
		logger.Error("missing anon_id", zap.String("event_type", analytics.EventAdRequest))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "anon_id required", http.StatusBadRequest)
		return
	}

	s.enrichRequest(req, r)

	span.SetAttributes(
		attribute.String("placement_code", req.PlacementCode),
		attribute.String("anon_id", req.AnonID),
		attribute.String("device_type", req.DeviceType),
		attribute.String("country", req.Country),
	)

	requestID := uuid.NewString()
	s.recordEvent(ctx, logger, analytics.Event{
		EventType:     analytics.EventAdRequest,
		RequestID:     requestID,
		PlacementCode: req.PlacementCode,
		AnonID:        req.AnonID,
		UserID:        analytics.StrPtr(req.UserID),
		DeviceType:    analytics.StrPtr(req.DeviceType),
		Country:       analytics.StrPtr(req.Country),
		Region:        analytics.StrPtr(req.Region),
		City:          analytics.StrPtr(req.City),
	})
	s.Metrics.IncrementEvent(analytics.EventAdRequest)

	resp := s.Engine.MakeAdDecision(ctx, *req)
	s.Metrics.RecordDecisionLatency(time.Since(start))

	switch resp.Status {
	case models.DecisionStatusOK:
		span.SetAttributes(
			attribute.String("decision.result", "ok"),
			attribute.String("decision.line_item_id", resp.Decision.LineItemID),
			attribute.String("decision.creative_id", resp.Decision.CreativeID),
		)
		strategy := ""
		if resp.Debug != nil {
			strategy = strings.TrimPrefix(resp.Debug.Reason, "selected_by_")
		}
		if resp.Debug != nil && resp.Debug.Reason == models.ReasonProviderFallback {
			s.Metrics.IncrementProviderFallbacks()
		} else {
			s.Metrics.IncrementDecisions(strategy)
		}
		s.recordEvent(ctx, logger, analytics.Event{
			EventType:     analytics.EventAdServed,
			RequestID:     requestID,
			PlacementCode: req.PlacementCode,
			LineItemID:    analytics.StrPtr(resp.Decision.LineItemID),
			CreativeID:    analytics.StrPtr(resp.Decision.CreativeID),
			CampaignID:    analytics.StrPtr(resp.Decision.Metadata.CampaignID),
			AnonID:        req.AnonID,
			UserID:        analytics.StrPtr(req.UserID),
			DeviceType:    analytics.StrPtr(req.DeviceType),
			Country:       analytics.StrPtr(req.Country),
			Strategy:      analytics.StrPtr(strategy),
		})
		s.Metrics.IncrementEvent(analytics.EventAdServed)
		if observability.ShouldSample(observability.GetSamplingRate()) {
			logger.Info("ad served",
				zap.String("request_id", requestID),
				zap.String("placement_code", req.PlacementCode),
				zap.String("line_item_id", resp.Decision.LineItemID),
				zap.String("event_type", analytics.EventAdServed))
		}
		s.Metrics.IncrementRequests(endpoint, method, "200")
	case models.DecisionStatusNoAd:
		reason := ""
		if resp.Debug != nil {
			reason = resp.Debug.Reason
		}
		span.SetAttributes(
			attribute.String("decision.result", "no_ad"),
			attribute.String("decision.reason", reason),
		)
		s.Metrics.IncrementNoAd(reason)
		s.recordEvent(ctx, logger, analytics.Event{
			EventType:     analytics.EventNoAd,
			RequestID:     requestID,
			PlacementCode: req.PlacementCode,
			AnonID:        req.AnonID,
			UserID:        analytics.StrPtr(req.UserID),
			DeviceType:    analytics.StrPtr(req.DeviceType),
			Country:       analytics.StrPtr(req.Country),
			Reason:        analytics.StrPtr(reason),
		})
		s.Metrics.IncrementEvent(analytics.EventNoAd)
		if observability.ShouldSample(observability.GetSamplingRate()) {
			logger.Info("no ad",
				zap.String("request_id", requestID),
				zap.String("placement_code", req.PlacementCode),
				zap.String("reason", reason),
				zap.String("event_type", analytics.EventNoAd))
		}
		s.Metrics.IncrementRequests(endpoint, method, "200")
	default:
		span.SetAttributes(attribute.String("decision.result", "error"))
		s.Metrics.IncrementDecisionErrors()
		logger.Error("decision error",
			zap.String("request_id", requestID),
			zap.String("placement_code", req.PlacementCode),
			zap.String("error", resp.Error))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, resp)
		return
	}
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))

	writeJSON(w, resp)
}

// enrichRequest fills device and geo fields the client did not supply, from
// the User-Agent header and the request IP.
func (s *Server) enrichRequest(req *models.DecisionRequest, r *http.Request) {
	ua := req.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}
	if req.DeviceType == "" && ua != "" {
		req.DeviceType = deviceTypeFromUA(ua)
	}

	if req.Country != "" || s.GeoIP == nil {
		return
	}
	ipStr := req.IP
	if ipStr == "" {
		ipStr = clientIP(r)
	}
	if ip := net.ParseIP(ipStr); ip != nil {
		loc := s.GeoIP.Lookup(ip)
		req.Country = loc.Country
		req.Region = loc.Region
		req.City = loc.City
	}
}

// deviceTypeFromUA buckets a raw User-Agent into the device classes the
// targeting rules use.
func deviceTypeFromUA(uaString string) string {
	u := uasurfer.Parse(uaString)
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// clientIP extracts the originating IP, preferring the first entry of
// X-Forwarded-For over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recordEvent writes an analytics event, logging instead of failing the
// request when the sink is down. Decisions must keep flowing without
// ClickHouse.
func (s *Server) recordEvent(ctx context.Context, logger *zap.Logger, ev analytics.Event) {
	if s.Analytics == nil {
		return
	}
	if err := s.Analytics.RecordEvent(ctx, ev); err != nil {
		logger.Error("analytics record", zap.Error(err), zap.String("event_type", ev.EventType))
	}
}
