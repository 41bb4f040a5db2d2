package models

// UserContext holds the per-request signals targeting rules are evaluated
// against. It is assembled by the decision engine from the inbound request
// (geo, device, page, referrer, login state, local time) plus any custom
// key-values supplied by the caller, and discarded once the decision is made.
type UserContext struct {
	Country  string           `json:"country,omitempty"`
	Region   string           `json:"region,omitempty"`
	City     string           `json:"city,omitempty"`
	Device   string           `json:"device,omitempty"`
	User     UserSignals      `json:"user"`
	Time     TimeSignals      `json:"time"`
	Page     PageSignals      `json:"page"`
	Referrer string           `json:"referrer,omitempty"`
	Custom   map[string]any   `json:"custom,omitempty"`

	// fields caches the dot-path view of the context, built on first lookup.
	fields map[string]any
}

// UserSignals describes the requesting user's account state.
type UserSignals struct {
	IsLoggedIn       bool   `json:"is_logged_in"`
	UserID           string `json:"user_id,omitempty"`
	IsSubscribed     bool   `json:"is_subscribed,omitempty"`
	SubscriptionTier string `json:"subscription_tier,omitempty"`
}

// TimeSignals captures the request's local time-of-day and day-of-week
// (0 = Sunday, 6 = Saturday).
type TimeSignals struct {
	Hour      int `json:"hour"`
	DayOfWeek int `json:"day_of_week"`
}

// PageSignals describes the page the ad request originated from.
type PageSignals struct {
	Path        string            `json:"path,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
}

// Field resolves a dot path like "page.path" or "custom.segment" against the
// context. The second return value is false when any path segment is missing.
// A UserContext is confined to a single decision call, so the lazily built
// field map needs no locking.
func (c *UserContext) Field(path string) (any, bool) {
	if c.fields == nil {
		c.fields = c.buildFields()
	}
	return lookupPath(c.fields, path)
}

func (c *UserContext) buildFields() map[string]any {
	qp := make(map[string]any, len(c.Page.QueryParams))
	for k, v := range c.Page.QueryParams {
		qp[k] = v
	}
	custom := make(map[string]any, len(c.Custom))
	for k, v := range c.Custom {
		custom[k] = v
	}
	return map[string]any{
		"country":  c.Country,
		"region":   c.Region,
		"city":     c.City,
		"device":   c.Device,
		"referrer": c.Referrer,
		"user": map[string]any{
			"is_logged_in":      c.User.IsLoggedIn,
			"user_id":           c.User.UserID,
			"is_subscribed":     c.User.IsSubscribed,
			"subscription_tier": c.User.SubscriptionTier,
		},
		"time": map[string]any{
			"hour":        c.Time.Hour,
			"day_of_week": c.Time.DayOfWeek,
		},
		"page": map[string]any{
			"path":         c.Page.Path,
			"query_params": qp,
		},
		"custom": custom,
	}
}

func lookupPath(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		seg := path[start:i]
		start = i + 1
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
