package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/targeting"
)

// ===== Placements =====

func (s *Server) ListPlacements(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	out, err := s.PG.ListPlacements(r.Context())
	if err != nil {
		s.Logger.Error("list placements", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) CreatePlacement(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var pl models.Placement
	if err := json.NewDecoder(r.Body).Decode(&pl); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if pl.Code == "" {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}
	if err := s.PG.InsertPlacement(r.Context(), &pl); err != nil {
		s.Logger.Error("insert placement", zap.Error(err))
		http.Error(w, "failed to persist placement", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, pl)
}

func (s *Server) UpdatePlacement(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var pl models.Placement
	if err := json.NewDecoder(r.Body).Decode(&pl); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	pl.ID = mux.Vars(r)["id"]
	if err := s.PG.UpdatePlacement(r.Context(), pl); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "placement not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("update placement", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, pl)
}

func (s *Server) DeletePlacement(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.PG.DeletePlacement(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "placement not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("delete placement", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Campaigns =====

func (s *Server) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	out, err := s.PG.ListCampaigns(r.Context())
	if err != nil {
		s.Logger.Error("list campaigns", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if c.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if err := s.PG.InsertCampaign(r.Context(), &c); err != nil {
		s.Logger.Error("insert campaign", zap.Error(err))
		http.Error(w, "failed to persist campaign", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, c)
}

func (s *Server) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c.ID = mux.Vars(r)["id"]
	if err := s.PG.UpdateCampaign(r.Context(), c); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("update campaign", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, c)
}

func (s *Server) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.PG.DeleteCampaign(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("delete campaign", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Creatives =====

func (s *Server) ListCreatives(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	out, err := s.PG.ListCreatives(r.Context())
	if err != nil {
		s.Logger.Error("list creatives", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) CreateCreative(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var c models.Creative
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if c.FileURL == "" && c.ThirdPartyTag == "" {
		http.Error(w, "file_url or third_party_tag required", http.StatusBadRequest)
		return
	}
	if err := s.PG.InsertCreative(r.Context(), &c); err != nil {
		s.Logger.Error("insert creative", zap.Error(err))
		http.Error(w, "failed to persist creative", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, c)
}

func (s *Server) UpdateCreative(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var c models.Creative
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c.ID = mux.Vars(r)["id"]
	if err := s.PG.UpdateCreative(r.Context(), c); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "creative not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("update creative", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, c)
}

func (s *Server) DeleteCreative(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.PG.DeleteCreative(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "creative not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("delete creative", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Line items =====

func (s *Server) ListLineItems(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	out, err := s.PG.ListLineItems(r.Context())
	if err != nil {
		s.Logger.Error("list line items", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) CreateLineItem(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var li models.LineItem
	if err := json.NewDecoder(r.Body).Decode(&li); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if li.CreativeID == "" || li.PlacementID == "" {
		http.Error(w, "creative_id and placement_id required", http.StatusBadRequest)
		return
	}
	// Structural errors in targeting rules must be caught at save time;
	// the evaluator treats broken leaves as non-matching.
	if li.Targeting != nil {
		if err := targeting.Validate(li.Targeting); err != nil {
			s.Metrics.IncrementTargetingValidations("invalid")
			http.Error(w, "invalid targeting: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.Metrics.IncrementTargetingValidations("valid")
	}
	if err := s.PG.InsertLineItem(r.Context(), &li); err != nil {
		s.Logger.Error("insert line item", zap.Error(err))
		http.Error(w, "failed to persist line item", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, li)
}

func (s *Server) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var li models.LineItem
	if err := json.NewDecoder(r.Body).Decode(&li); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	li.ID = mux.Vars(r)["id"]
	if li.Targeting != nil {
		if err := targeting.Validate(li.Targeting); err != nil {
			s.Metrics.IncrementTargetingValidations("invalid")
			http.Error(w, "invalid targeting: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.Metrics.IncrementTargetingValidations("valid")
	}
	if err := s.PG.UpdateLineItem(r.Context(), li); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "line item not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("update line item", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, li)
}

func (s *Server) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.PG.DeleteLineItem(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "line item not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("delete line item", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Provider mappings =====

func (s *Server) ListProviderMappings(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	out, err := s.PG.ListProviderMappings(r.Context())
	if err != nil {
		s.Logger.Error("list provider mappings", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) CreateProviderMapping(w http.ResponseWriter, r *http.Request) {
	if s.PG == nil {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	var m models.ProviderMapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if m.PlacementID == "" || m.TagTemplate == "" {
		http.Error(w, "placement_id and tag_template required", http.StatusBadRequest)
		return
	}
	if err := s.PG.InsertProviderMapping(r.Context(), &m); err != nil {
		s.Logger.Error("insert provider mapping", zap.Error(err))
		http.Error(w, "failed to persist provider mapping", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, m)
}
