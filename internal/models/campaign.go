package models

// Campaign groups related line items for organization and reporting.
// Delivery rules live entirely on the line item.
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Creative is the ad asset a line item delivers: a hosted image/video/HTML
// file or a raw third-party tag.
type Creative struct {
	ID string `json:"id"`
	// Type is one of the CreativeType constants; anything unrecognized is
	// rendered in an iframe.
	Type             string `json:"type"`
	FileURL          string `json:"file_url,omitempty"`
	ThirdPartyTag    string `json:"third_party_tag,omitempty"`
	ClickURLTemplate string `json:"click_url_template,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
}
