package models

import "time"

// Line item statuses. Only active line items are eligible for delivery.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

// Rotation strategies for picking one winner among eligible line items.
const (
	RotationWeightedRandom   = "weighted_random"
	RotationEvenDistribution = "even_distribution"
	RotationPriorityFirst    = "priority_first"
	RotationSequential       = "sequential"
	RotationABTest           = "ab_test"
)

// Creative types. Anything else renders inside an iframe.
const (
	CreativeTypeBanner = "banner"
	CreativeTypeHTML   = "html"
	CreativeTypeVideo  = "video"
)

// LineItem is a scheduled assignment of one creative to a placement. It is
// the unit the decision engine filters and rotates over: schedule window,
// targeting rule, frequency-cap settings, impression caps and rotation
// weighting all live here. Rows are created and updated by the campaign
// management API; the decision engine reads them and never mutates them.
// ServedImpressions is advanced by the event-tracking collaborator, not by
// the engine.
type LineItem struct {
	ID          string `json:"id"`
	CreativeID  string `json:"creative_id"`
	CampaignID  string `json:"campaign_id"`
	PlacementID string `json:"placement_id"`
	Name        string `json:"name,omitempty"`
	// Priority ranks line items for priority_first rotation; higher wins.
	Priority int `json:"priority"`
	// Weight is the non-negative share used by weighted_random rotation.
	Weight int    `json:"weight"`
	Status string `json:"status"`
	// Targeting is nil when the line item targets everyone.
	Targeting *TargetingRule `json:"targeting,omitempty"`
	StartAt   time.Time      `json:"start_at"`
	EndAt     time.Time      `json:"end_at"`
	// RotationStrategy is a placement-level setting duplicated onto every
	// line item; the engine consults the first eligible item's value.
	RotationStrategy  string `json:"rotation_strategy,omitempty"`
	ServedImpressions int    `json:"served_impressions"`
	// Nil caps mean unlimited.
	MaxImpressionsTotal *int `json:"max_impressions_total,omitempty"`
	MaxImpressionsDaily *int `json:"max_impressions_daily,omitempty"`
	// FreqCapCount impressions per FreqCapWindow per anon id. Zero values
	// disable the cap.
	FreqCapCount  int           `json:"freq_cap_count,omitempty"`
	FreqCapWindow time.Duration `json:"freq_cap_window,omitempty"`

	// Creative rendering fields, denormalized from the creatives table by
	// the placement lookup so a decision needs a single query.
	CreativeType          string `json:"creative_type,omitempty"`
	CreativeFileURL       string `json:"creative_file_url,omitempty"`
	CreativeThirdPartyTag string `json:"creative_third_party_tag,omitempty"`
	CreativeClickURL      string `json:"creative_click_url,omitempty"`
	CreativeWidth         int    `json:"creative_width,omitempty"`
	CreativeHeight        int    `json:"creative_height,omitempty"`
}

// HasAvailableBudget reports whether the line item is under its total
// impression cap. A nil cap is unlimited. Daily caps need date context and
// are enforced by the tracking layer, not here.
func (li *LineItem) HasAvailableBudget() bool {
	if li.MaxImpressionsTotal == nil {
		return true
	}
	return li.ServedImpressions < *li.MaxImpressionsTotal
}
