package decision

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/openadstack/addecide/internal/models"
)

// RenderType derives the client render mode from the creative. Third-party
// tags are sniffed for VAST and script markers; native creatives map video
// to VAST and html to html, with iframe as the safe default.
func RenderType(creativeType, thirdPartyTag string) string {
	if thirdPartyTag != "" {
		lower := strings.ToLower(thirdPartyTag)
		if strings.Contains(lower, "vast") {
			return models.RenderTypeVAST
		}
		if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") {
			return models.RenderTypeJS
		}
		return models.RenderTypeHTML
	}

	switch creativeType {
	case models.CreativeTypeVideo:
		return models.RenderTypeVAST
	case models.CreativeTypeHTML:
		return models.RenderTypeHTML
	default:
		return models.RenderTypeIframe
	}
}

// RenderHTML builds the markup fragment the client injects. Third-party tags
// pass through verbatim; hosted HTML creatives are wrapped in a sandboxed
// iframe; image and video files become a click-through anchor around an img
// tag. Empty when there is nothing to render.
func RenderHTML(li *models.LineItem) string {
	if li.CreativeThirdPartyTag != "" {
		return li.CreativeThirdPartyTag
	}

	if li.CreativeType == models.CreativeTypeHTML && li.CreativeFileURL != "" {
		return fmt.Sprintf(
			`<iframe src="%s" sandbox="allow-scripts allow-same-origin" style="border: none; width: %s; height: %s;"></iframe>`,
			html.EscapeString(li.CreativeFileURL),
			dimension(li.CreativeWidth),
			dimension(li.CreativeHeight),
		)
	}

	if li.CreativeFileURL != "" {
		clickURL := li.CreativeClickURL
		if clickURL == "" {
			clickURL = "#"
		}
		return fmt.Sprintf(
			`<a href="%s" target="_blank" rel="noopener noreferrer"><img src="%s" alt="Advertisement" style="max-width: 100%%; height: auto;" /></a>`,
			html.EscapeString(clickURL),
			html.EscapeString(li.CreativeFileURL),
		)
	}

	return ""
}

func dimension(px int) string {
	if px > 0 {
		return strconv.Itoa(px)
	}
	return "100%"
}
