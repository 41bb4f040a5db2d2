// Package decision implements the ad decision pipeline: fetch candidate line
// items for a placement, filter by schedule, targeting, frequency caps and
// budget, rotate to a single winner and assemble the render payload.
package decision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/models"
	"github.com/openadstack/addecide/internal/rotation"
	"github.com/openadstack/addecide/internal/targeting"
)

// LineItemSource fetches every line item configured for a placement,
// regardless of status or schedule; the engine does the filtering.
type LineItemSource interface {
	LineItemsForPlacement(ctx context.Context, placementCode string) ([]models.LineItem, error)
}

// FrequencyCapChecker gates a line item per anon id. True means the item may
// be served to this user.
type FrequencyCapChecker interface {
	Allow(ctx context.Context, lineItemID, anonID, userID string) (bool, error)
}

// ProviderTagSource returns a third-party ad network tag for a placement, or
// empty when none is configured. Used as a fallback when the placement has
// no line items at all.
type ProviderTagSource interface {
	ProviderTag(ctx context.Context, placementCode string) (string, error)
}

// SequenceCursor persists the round-robin position for sequential rotation.
// NextIndex advances the per-placement cursor and returns the slot to serve
// next, already reduced modulo size.
type SequenceCursor interface {
	NextIndex(ctx context.Context, placementCode string, size int) (int, error)
}

// Engine runs ad decisions. It owns no I/O: line items, frequency caps and
// provider tags come from injected collaborators, so many requests may run
// decisions concurrently with no shared state here.
type Engine struct {
	items    LineItemSource
	freqCaps FrequencyCapChecker
	provider ProviderTagSource
	cursor   SequenceCursor
	logger   *zap.Logger

	baseURL string
	expiry  time.Duration
	now     func() time.Time
}

// NewEngine constructs an Engine over the required collaborators.
func NewEngine(items LineItemSource, freqCaps FrequencyCapChecker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		items:    items,
		freqCaps: freqCaps,
		logger:   logger,
		expiry:   time.Hour,
		now:      time.Now,
	}
}

// SetBaseURL prefixes tracking URLs with an absolute origin. Empty keeps
// them relative, which the default web embed expects.
func (e *Engine) SetBaseURL(u string) { e.baseURL = u }

// SetExpiry overrides how long returned decisions stay valid.
func (e *Engine) SetExpiry(d time.Duration) {
	if d > 0 {
		e.expiry = d
	}
}

// SetProviderTagSource enables the third-party provider fallback for
// placements with no line items.
func (e *Engine) SetProviderTagSource(p ProviderTagSource) { e.provider = p }

// SetSequenceCursor enables persisted round-robin positions for sequential
// rotation. Without a cursor every sequential decision starts the cycle over.
func (e *Engine) SetSequenceCursor(c SequenceCursor) { e.cursor = c }

// MakeAdDecision runs the full pipeline for one request. It always returns a
// response: expected empty outcomes become status no_ad with a machine
// readable debug reason, collaborator failures and panics become status
// error. Nothing escapes to the caller.
func (e *Engine) MakeAdDecision(ctx context.Context, req models.DecisionRequest) (resp *models.DecisionResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("decision panic",
				zap.String("placement_code", req.PlacementCode),
				zap.Any("panic", r))
			resp = errorResponse(fmt.Sprintf("decision panic: %v", r))
		}
	}()

	userCtx := e.buildUserContext(req)

	all, err := e.items.LineItemsForPlacement(ctx, req.PlacementCode)
	if err != nil {
		return errorResponse(err.Error())
	}

	if len(all) == 0 {
		if e.provider != nil {
			tag, err := e.provider.ProviderTag(ctx, req.PlacementCode)
			if err != nil {
				return errorResponse(err.Error())
			}
			if tag != "" {
				return e.providerFallback(tag)
			}
		}
		return noAd(models.ReasonNoLineItems, 0)
	}

	now := e.now()
	scheduled := all[:0:0]
	for _, li := range all {
		if li.Status == models.StatusActive && !now.Before(li.StartAt) && !now.After(li.EndAt) {
			scheduled = append(scheduled, li)
		}
	}
	if len(scheduled) == 0 {
		return noAd(models.ReasonNoScheduledItems, len(all))
	}

	matched := scheduled[:0:0]
	for _, li := range scheduled {
		if targeting.Evaluate(targeting.Compile(li.Targeting), userCtx) {
			matched = append(matched, li)
		}
	}
	if len(matched) == 0 {
		return noAd(models.ReasonNoTargetingMatch, len(scheduled))
	}

	// Checked one item at a time; each check is independent, so this could
	// be fanned out without changing the outcome.
	capped := matched[:0:0]
	for _, li := range matched {
		allowed, err := e.freqCaps.Allow(ctx, li.ID, req.AnonID, req.UserID)
		if err != nil {
			return errorResponse(err.Error())
		}
		if allowed {
			capped = append(capped, li)
		}
	}
	if len(capped) == 0 {
		return noAd(models.ReasonFrequencyCapped, len(matched))
	}

	// Real-time budget tracking is not wired up yet; every capped item
	// passes. The budget_exhausted reason stays declared for when it is.
	budgeted := capped
	if len(budgeted) == 0 {
		return noAd(models.ReasonBudgetExhausted, len(capped))
	}

	strategy := budgeted[0].RotationStrategy
	if strategy == "" {
		strategy = models.RotationWeightedRandom
	}
	selected := rotation.Rotate(budgeted, strategy, e.rotationContext(ctx, req, strategy, len(budgeted)))
	if selected == nil {
		return noAd(models.ReasonRotationFailed, len(budgeted))
	}

	return &models.DecisionResponse{
		Status:   models.DecisionStatusOK,
		Decision: e.buildDecision(selected),
		Debug: &models.DecisionDebug{
			Reason:         "selected_by_" + strategy,
			EvaluatedItems: len(all),
			FilteredItems:  len(budgeted),
		},
	}
}

// buildUserContext assembles the targeting context from the request and the
// engine clock. It lives for this one decision.
func (e *Engine) buildUserContext(req models.DecisionRequest) *models.UserContext {
	now := e.now()
	user := models.UserSignals{IsLoggedIn: false}
	if req.UserID != "" {
		user = models.UserSignals{IsLoggedIn: true, UserID: req.UserID}
	}
	return &models.UserContext{
		Country:  req.Country,
		Region:   req.Region,
		City:     req.City,
		Device:   req.DeviceType,
		User:     user,
		Time:     models.TimeSignals{Hour: now.Hour(), DayOfWeek: int(now.Weekday())},
		Page:     models.PageSignals{Path: req.PagePath, QueryParams: req.QueryParams},
		Referrer: req.Referrer,
		Custom:   req.CustomContext,
	}
}

func (e *Engine) rotationContext(ctx context.Context, req models.DecisionRequest, strategy string, size int) rotation.Context {
	rc := rotation.Context{AnonID: req.AnonID, LastServedIndex: -1}
	if strategy == models.RotationSequential && e.cursor != nil {
		idx, err := e.cursor.NextIndex(ctx, req.PlacementCode, size)
		if err != nil {
			// Fail open: an unavailable cursor restarts the cycle rather
			// than blocking the decision.
			e.logger.Warn("sequence cursor", zap.Error(err), zap.String("placement_code", req.PlacementCode))
			return rc
		}
		rc.LastServedIndex = idx - 1
	}
	return rc
}

func (e *Engine) buildDecision(li *models.LineItem) *models.Decision {
	var size string
	if li.CreativeWidth > 0 && li.CreativeHeight > 0 {
		size = fmt.Sprintf("%dx%d", li.CreativeWidth, li.CreativeHeight)
	}
	provider := "internal"
	if li.CreativeThirdPartyTag != "" {
		provider = "third_party"
	}
	return &models.Decision{
		CreativeID:            li.CreativeID,
		LineItemID:            li.ID,
		RenderType:            RenderType(li.CreativeType, li.CreativeThirdPartyTag),
		RenderHTML:            RenderHTML(li),
		ImpressionTrackingURL: fmt.Sprintf("%s/api/ads/event?type=impression&line_item_id=%s&creative_id=%s", e.baseURL, li.ID, li.CreativeID),
		ClickTrackingURL:      fmt.Sprintf("%s/api/ads/track/click?line_item_id=%s&creative_id=%s", e.baseURL, li.ID, li.CreativeID),
		ExpiryTimestamp:       e.now().Add(e.expiry).UTC().Format(time.RFC3339),
		Metadata: models.DecisionMetadata{
			Size:       size,
			Provider:   provider,
			CampaignID: li.CampaignID,
		},
	}
}

// providerFallback serves the raw network tag when a placement has no line
// items configured. The literal "provider" ids keep tracking rows
// attributable without inventing a line item.
func (e *Engine) providerFallback(tag string) *models.DecisionResponse {
	return &models.DecisionResponse{
		Status: models.DecisionStatusOK,
		Decision: &models.Decision{
			CreativeID:      "provider",
			LineItemID:      "provider",
			RenderType:      models.RenderTypeJS,
			RenderHTML:      tag,
			ExpiryTimestamp: e.now().Add(e.expiry).UTC().Format(time.RFC3339),
			Metadata:        models.DecisionMetadata{Provider: "third_party"},
		},
		Debug: &models.DecisionDebug{Reason: models.ReasonProviderFallback},
	}
}

func noAd(reason string, evaluated int) *models.DecisionResponse {
	return &models.DecisionResponse{
		Status: models.DecisionStatusNoAd,
		Debug:  &models.DecisionDebug{Reason: reason, EvaluatedItems: evaluated},
	}
}

func errorResponse(msg string) *models.DecisionResponse {
	return &models.DecisionResponse{Status: models.DecisionStatusError, Error: msg}
}
