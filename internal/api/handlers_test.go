package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/config"
	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/decision"
	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/observability"
)

// stubSource serves a fixed line item set to the decision engine.
type stubSource struct {
	items []models.LineItem
}

func (s *stubSource) LineItemsForPlacement(ctx context.Context, placementCode string) ([]models.LineItem, error) {
	return s.items, nil
}

// allowAllCaps never blocks a line item.
type allowAllCaps struct{}

func (allowAllCaps) Allow(ctx context.Context, lineItemID, anonID, userID string) (bool, error) {
	return true, nil
}

type testServer struct {
	*Server
	router    http.Handler
	recorder  *analytics.MockRecorder
	metrics   *observability.MockMetricsRegistry
	miniredis *miniredis.Miniredis
}

func newTestServer(t *testing.T, items []models.LineItem) *testServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := &db.RedisStore{Client: client, Ctx: context.Background()}

	engine := decision.NewEngine(&stubSource{items: items}, allowAllCaps{}, logger)
	rec := analytics.NewMockRecorder()
	metrics := observability.NewMockMetricsRegistry()

	srv := NewServer(logger, nil, store, engine, rec, nil, nil, metrics, config.Config{})
	return &testServer{
		Server:    srv,
		router:    srv.Routes(),
		recorder:  rec,
		metrics:   metrics,
		miniredis: mr,
	}
}

func servableLineItem(id string) models.LineItem {
	now := time.Now()
	return models.LineItem{
		ID:              id,
		CreativeID:      "cr-" + id,
		CampaignID:      "cmp-1",
		Status:          models.StatusActive,
		Weight:          1,
		StartAt:         now.Add(-time.Hour),
		EndAt:           now.Add(time.Hour),
		CreativeType:    models.CreativeTypeBanner,
		CreativeFileURL: "https://cdn.test/" + id + ".png",
		CreativeWidth:   300,
		CreativeHeight:  250,
	}
}

func postJSON(ts *testServer, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestDecideHandlerServesAd(t *testing.T) {
	ts := newTestServer(t, []models.LineItem{servableLineItem("li-1")})

	w := postJSON(ts, "/api/ads/decide", models.DecisionRequest{
		PlacementCode: "sidebar_top",
		AnonID:        "anon-1",
		DeviceType:    "desktop",
		Country:       "US",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.DecisionStatusOK, resp.Status)
	require.NotNil(t, resp.Decision)
	assert.Equal(t, "li-1", resp.Decision.LineItemID)

	assert.Len(t, ts.recorder.ByType(analytics.EventAdRequest), 1)
	served := ts.recorder.ByType(analytics.EventAdServed)
	require.Len(t, served, 1)
	require.NotNil(t, served[0].LineItemID)
	assert.Equal(t, "li-1", *served[0].LineItemID)
	assert.Equal(t, served[0].RequestID, ts.recorder.ByType(analytics.EventAdRequest)[0].RequestID)

	assert.Equal(t, 1, ts.metrics.Decisions["weighted_random"])
}

func TestDecideHandlerNoAd(t *testing.T) {
	ts := newTestServer(t, nil)

	w := postJSON(ts, "/api/ads/decide", models.DecisionRequest{
		PlacementCode: "sidebar_top",
		AnonID:        "anon-1",
		DeviceType:    "desktop",
		Country:       "US",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.DecisionStatusNoAd, resp.Status)
	assert.Nil(t, resp.Decision)

	assert.Len(t, ts.recorder.ByType(analytics.EventNoAd), 1)
	assert.Equal(t, 1, ts.metrics.NoAds[models.ReasonNoLineItems])
}

func TestDecideHandlerRequiresAnonID(t *testing.T) {
	ts := newTestServer(t, nil)

	w := postJSON(ts, "/api/ads/decide", models.DecisionRequest{
		PlacementCode: "sidebar_top",
		DeviceType:    "desktop",
		Country:       "US",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "anon_id")
	assert.Empty(t, ts.recorder.Events)
}

func TestDecideHandlerBadRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ads/decide", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(ts, "/api/ads/decide", models.DecisionRequest{AnonID: "anon-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "placement_code")
}

type failingSource struct{}

func (failingSource) LineItemsForPlacement(ctx context.Context, placementCode string) ([]models.LineItem, error) {
	return nil, fmt.Errorf("pg down")
}

func TestDecideHandlerDecisionError(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.Server.Engine = decision.NewEngine(failingSource{}, allowAllCaps{}, ts.Logger)

	w := postJSON(ts, "/api/ads/decide", models.DecisionRequest{
		PlacementCode: "sidebar_top",
		AnonID:        "anon-1",
		DeviceType:    "desktop",
		Country:       "US",
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.DecisionStatusError, resp.Status)
	assert.Contains(t, resp.Error, "pg down")
	assert.Equal(t, 1, ts.metrics.Errors)
}

func TestEventHandlerPixel(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "/api/ads/event?type=impression&line_item_id=li-1&creative_id=cr-1&anon_id=anon-1"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, w.Body.Bytes())

	events := ts.recorder.ByType(analytics.EventImpression)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].LineItemID)
	assert.Equal(t, "li-1", *events[0].LineItemID)
	assert.Equal(t, 1, ts.metrics.Events[analytics.EventImpression])

	// The confirmed impression bumps today's delivery counter.
	key := fmt.Sprintf("daily:lineitem:li-1:%s", time.Now().Format("2006-01-02"))
	val, err := ts.miniredis.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestEventHandlerPostJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	w := postJSON(ts, "/api/ads/event", map[string]string{
		"event_type":   "click",
		"line_item_id": "li-1",
		"anon_id":      "anon-1",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["success"])

	assert.Len(t, ts.recorder.ByType(analytics.EventClick), 1)
}

func TestEventHandlerQueryOverridesBody(t *testing.T) {
	ts := newTestServer(t, nil)

	w := postJSON(ts, "/api/ads/event?type=view", map[string]string{
		"event_type": "click",
		"anon_id":    "anon-1",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, ts.recorder.ByType(analytics.EventView), 1)
	assert.Empty(t, ts.recorder.ByType(analytics.EventClick))
}

func TestEventHandlerRejectsBadTypes(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads/event", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ads/event?type=purchase&anon_id=anon-1", nil)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.recorder.Events)
}

func TestClickTrackRedirect(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "/api/ads/track/click?line_item_id=li-1&creative_id=cr-1&redirect=https%3A%2F%2Fbrand.test%2Flanding"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://brand.test/landing", w.Header().Get("Location"))

	clicks := ts.recorder.ByType(analytics.EventClick)
	require.Len(t, clicks, 1)
	require.NotNil(t, clicks[0].LineItemID)
	assert.Equal(t, "li-1", *clicks[0].LineItemID)
}

func TestClickTrackNoDestination(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads/track/click?line_item_id=li-1", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, ts.recorder.ByType(analytics.EventClick), 1, "click still recorded")
}

func TestClickTrackRejectsUnsafeRedirect(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "/api/ads/track/click?line_item_id=li-1&redirect=javascript%3Aalert(1)"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestClickTrackMissingLineItem(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads/track/click", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateTargetingHandler(t *testing.T) {
	ts := newTestServer(t, nil)

	w := postJSON(ts, "/api/ads/targeting/validate", models.TargetingRule{
		Field: "country", Operator: models.CmpEqual, Value: "US",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp validateTargetingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Error)

	w = postJSON(ts, "/api/ads/targeting/validate", models.TargetingRule{
		Field: "country", Operator: "~=", Value: "US",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Error)

	assert.Equal(t, 1, ts.metrics.Validations["valid"])
	assert.Equal(t, 1, ts.metrics.Validations["invalid"])
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
