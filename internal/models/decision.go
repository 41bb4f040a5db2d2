package models

// Decision response statuses.
const (
	DecisionStatusOK    = "ok"
	DecisionStatusNoAd  = "no_ad"
	DecisionStatusError = "error"
)

// Render types the client SDK understands.
const (
	RenderTypeIframe = "iframe"
	RenderTypeJS     = "js"
	RenderTypeHTML   = "html"
	RenderTypeVAST   = "vast"
)

// No-ad debug reasons, one per pipeline stage that can come up empty.
const (
	ReasonNoLineItems       = "no_line_items"
	ReasonNoScheduledItems  = "no_scheduled_items"
	ReasonNoTargetingMatch  = "no_targeting_matches"
	ReasonFrequencyCapped   = "frequency_cap_exceeded"
	ReasonBudgetExhausted   = "budget_exhausted"
	ReasonRotationFailed    = "rotation_failed"
	ReasonProviderFallback  = "provider_fallback"
)

// DecisionRequest is the wire body of POST /api/ads/decide.
type DecisionRequest struct {
	PlacementCode string            `json:"placement_code"`
	AnonID        string            `json:"anon_id"`
	UserID        string            `json:"user_id,omitempty"`
	PagePath      string            `json:"page_path,omitempty"`
	QueryParams   map[string]string `json:"query_params,omitempty"`
	DeviceType    string            `json:"device_type,omitempty"`
	Country       string            `json:"country,omitempty"`
	Region        string            `json:"region,omitempty"`
	City          string            `json:"city,omitempty"`
	Referrer      string            `json:"referrer,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	IP            string            `json:"ip,omitempty"`
	CustomContext map[string]any    `json:"custom_context,omitempty"`
}

// DecisionResponse is the engine's answer. Exactly one of Decision or Error
// is populated, depending on Status; Debug may accompany any status.
type DecisionResponse struct {
	Status   string         `json:"status"`
	Decision *Decision      `json:"decision,omitempty"`
	Debug    *DecisionDebug `json:"debug,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Decision carries everything the client needs to render and track the ad.
type Decision struct {
	CreativeID            string           `json:"creative_id"`
	LineItemID            string           `json:"line_item_id"`
	RenderType            string           `json:"render_type"`
	RenderHTML            string           `json:"render_html,omitempty"`
	ImpressionTrackingURL string           `json:"impression_tracking_url"`
	ClickTrackingURL      string           `json:"click_tracking_url"`
	ExpiryTimestamp       string           `json:"expiry_timestamp"`
	Metadata              DecisionMetadata `json:"metadata"`
}

// DecisionMetadata holds optional extras about the winning creative.
type DecisionMetadata struct {
	Size       string `json:"size,omitempty"`
	Provider   string `json:"provider,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// DecisionDebug explains why the pipeline stopped or how the winner was
// picked, for the debug view in the ad manager.
type DecisionDebug struct {
	Reason         string `json:"reason,omitempty"`
	EvaluatedItems int    `json:"evaluated_items,omitempty"`
	FilteredItems  int    `json:"filtered_items,omitempty"`
}
