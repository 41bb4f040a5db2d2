package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/config"
	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/decision"
	"github.com/openadstack/addecide/internal/frequency"
	"github.com/openadstack/addecide/internal/geoip"
	"github.com/openadstack/addecide/internal/middleware"
	"github.com/openadstack/addecide/internal/observability"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	PG        *db.Postgres
	Store     *db.RedisStore
	Engine    *decision.Engine
	Analytics analytics.Recorder
	Freq      *frequency.Checker
	GeoIP     *geoip.GeoIP
	Metrics   observability.MetricsRegistry
	Config    config.Config
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, pg *db.Postgres, store *db.RedisStore, engine *decision.Engine, rec analytics.Recorder, freq *frequency.Checker, geo *geoip.GeoIP, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:    logger,
		PG:        pg,
		Store:     store,
		Engine:    engine,
		Analytics: rec,
		Freq:      freq,
		GeoIP:     geo,
		Metrics:   metrics,
		Config:    cfg,
	}
}

// Routes builds the full router: decision and tracking endpoints, the admin
// CRUD surface, health and metrics.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))

	ads := r.PathPrefix("/api/ads").Subrouter()
	ads.HandleFunc("/decide", s.DecideHandler).Methods("POST")
	ads.HandleFunc("/event", s.EventHandler).Methods("GET", "POST")
	ads.HandleFunc("/track/click", s.ClickTrackHandler).Methods("GET")
	ads.HandleFunc("/targeting/validate", s.ValidateTargetingHandler).Methods("POST")

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.HandleFunc("/placements", s.ListPlacements).Methods("GET")
	admin.HandleFunc("/placements", s.CreatePlacement).Methods("POST")
	admin.HandleFunc("/placements/{id}", s.UpdatePlacement).Methods("PUT")
	admin.HandleFunc("/placements/{id}", s.DeletePlacement).Methods("DELETE")

	admin.HandleFunc("/campaigns", s.ListCampaigns).Methods("GET")
	admin.HandleFunc("/campaigns", s.CreateCampaign).Methods("POST")
	admin.HandleFunc("/campaigns/{id}", s.UpdateCampaign).Methods("PUT")
	admin.HandleFunc("/campaigns/{id}", s.DeleteCampaign).Methods("DELETE")

	admin.HandleFunc("/creatives", s.ListCreatives).Methods("GET")
	admin.HandleFunc("/creatives", s.CreateCreative).Methods("POST")
	admin.HandleFunc("/creatives/{id}", s.UpdateCreative).Methods("PUT")
	admin.HandleFunc("/creatives/{id}", s.DeleteCreative).Methods("DELETE")

	admin.HandleFunc("/line_items", s.ListLineItems).Methods("GET")
	admin.HandleFunc("/line_items", s.CreateLineItem).Methods("POST")
	admin.HandleFunc("/line_items/{id}", s.UpdateLineItem).Methods("PUT")
	admin.HandleFunc("/line_items/{id}", s.DeleteLineItem).Methods("DELETE")

	admin.HandleFunc("/providers", s.ListProviderMappings).Methods("GET")
	admin.HandleFunc("/providers", s.CreateProviderMapping).Methods("POST")

	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
