package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/middleware"
)

// pixelGIF is a 1x1 transparent GIF served to tracking pixel requests.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// AllowedEventTypes lists the tracking event names accepted by the server.
var AllowedEventTypes = map[string]struct{}{
	analytics.EventImpression: {},
	analytics.EventClick:      {},
	analytics.EventView:       {},
	analytics.EventConvert:    {},
}

// eventBody is the JSON body of POST /api/ads/event. Pixel GETs carry the
// same fields as query parameters instead.
type eventBody struct {
	EventType     string `json:"event_type"`
	LineItemID    string `json:"line_item_id"`
	CreativeID    string `json:"creative_id"`
	CampaignID    string `json:"campaign_id"`
	PlacementCode string `json:"placement_code"`
	AnonID        string `json:"anon_id"`
	UserID        string `json:"user_id"`
}

// parseEvent merges query parameters and, for POSTs, the JSON body. Query
// values win so pixel URLs stay authoritative.
func parseEvent(r *http.Request) eventBody {
	var ev eventBody
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&ev)
		defer func() {
			_ = r.Body.Close()
		}()
	}
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		ev.EventType = v
	}
	if v := q.Get("event_type"); v != "" {
		ev.EventType = v
	}
	if v := q.Get("line_item_id"); v != "" {
		ev.LineItemID = v
	}
	if v := q.Get("creative_id"); v != "" {
		ev.CreativeID = v
	}
	if v := q.Get("placement_code"); v != "" {
		ev.PlacementCode = v
	}
	if v := q.Get("anon_id"); v != "" {
		ev.AnonID = v
	}
	if v := q.Get("user_id"); v != "" {
		ev.UserID = v
	}
	return ev
}

// EventHandler handles tracking events: GET pixel requests from the
// impression tracking URL and POST JSON from the client SDK.
func (s *Server) EventHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "event"

	ev := parseEvent(r)
	if ev.EventType == "" || ev.AnonID == "" {
		logger.Warn("missing event type or anon id")
		s.Metrics.IncrementRequests(endpoint, r.Method, "400")
		s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
		http.Error(w, "event_type and anon_id required", http.StatusBadRequest)
		return
	}
	if _, ok := AllowedEventTypes[ev.EventType]; !ok {
		logger.Warn("unknown event type", zap.String("type", ev.EventType))
		s.Metrics.IncrementRequests(endpoint, r.Method, "400")
		s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	deviceType := deviceTypeFromUA(r.UserAgent())
	var country string
	if s.GeoIP != nil {
		if ip := net.ParseIP(clientIP(r)); ip != nil {
			country = s.GeoIP.Country(ip)
		}
	}

	s.recordEvent(r.Context(), logger, analytics.Event{
		EventType:     ev.EventType,
		PlacementCode: ev.PlacementCode,
		LineItemID:    analytics.StrPtr(ev.LineItemID),
		CreativeID:    analytics.StrPtr(ev.CreativeID),
		CampaignID:    analytics.StrPtr(ev.CampaignID),
		AnonID:        ev.AnonID,
		UserID:        analytics.StrPtr(ev.UserID),
		DeviceType:    analytics.StrPtr(deviceType),
		Country:       analytics.StrPtr(country),
	})
	s.Metrics.IncrementEvent(ev.EventType)

	if ev.EventType == analytics.EventImpression && ev.LineItemID != "" {
		s.recordImpression(r, logger, ev)
	}

	s.Metrics.IncrementRequests(endpoint, r.Method, "200")
	s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "image/gif")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pixelGIF)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]bool{"success": true})
}

// recordImpression updates the counters a confirmed impression feeds:
// frequency caps, lifetime delivery and the daily counter. Failures are
// logged, never surfaced; the pixel must respond fast.
func (s *Server) recordImpression(r *http.Request, logger *zap.Logger, ev eventBody) {
	ctx := r.Context()
	if s.Freq != nil && ev.AnonID != "" {
		if err := s.Freq.Record(ctx, ev.LineItemID, ev.AnonID, ev.UserID); err != nil {
			logger.Error("frequency record", zap.Error(err), zap.String("line_item_id", ev.LineItemID))
		}
	}
	if s.PG != nil {
		if err := s.PG.IncrementServedImpressions(ctx, ev.LineItemID); err != nil {
			logger.Error("increment served impressions", zap.Error(err), zap.String("line_item_id", ev.LineItemID))
		}
	}
	if s.Store != nil {
		if _, err := s.Store.IncrementDailyImpressions(ctx, ev.LineItemID); err != nil {
			logger.Error("increment daily impressions", zap.Error(err), zap.String("line_item_id", ev.LineItemID))
		}
	}
}
