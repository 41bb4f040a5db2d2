package models

// Placement is a named slot on a page where an ad may be served. Callers
// address it by Code in decision requests; line items reference it by ID.
type Placement struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ProviderMapping attaches a third-party ad network tag to a placement as a
// fallback when no direct line items are configured. Lowest Priority wins.
type ProviderMapping struct {
	ID          string `json:"id"`
	PlacementID string `json:"placement_id"`
	TagTemplate string `json:"tag_template"`
	Priority    int    `json:"priority"`
	IsActive    bool   `json:"is_active"`
}
