package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openadstack/addecide/internal/models"
)

func TestRenderType(t *testing.T) {
	tests := []struct {
		name         string
		creativeType string
		tag          string
		want         string
	}{
		{"tag with vast marker", models.CreativeTypeBanner, "<VAST version=\"4.0\"></VAST>", models.RenderTypeVAST},
		{"tag with script", models.CreativeTypeBanner, `<script src="https://x.test/t.js"></script>`, models.RenderTypeJS},
		{"tag with javascript scheme", models.CreativeTypeBanner, `<a href="javascript:show()">ad</a>`, models.RenderTypeJS},
		{"plain markup tag", models.CreativeTypeBanner, `<div class="ad">hi</div>`, models.RenderTypeHTML},
		{"vast wins over script", models.CreativeTypeBanner, `<script>loadVast()</script>`, models.RenderTypeVAST},
		{"native video", models.CreativeTypeVideo, "", models.RenderTypeVAST},
		{"native html", models.CreativeTypeHTML, "", models.RenderTypeHTML},
		{"native banner", models.CreativeTypeBanner, "", models.RenderTypeIframe},
		{"unknown type defaults to iframe", "rich_media", "", models.RenderTypeIframe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderType(tt.creativeType, tt.tag))
		})
	}
}

func TestRenderHTMLThirdPartyTagVerbatim(t *testing.T) {
	tag := `<script src="https://adnet.test/tag.js"></script>`
	li := &models.LineItem{CreativeThirdPartyTag: tag, CreativeFileURL: "https://cdn.test/a.png"}
	assert.Equal(t, tag, RenderHTML(li))
}

func TestRenderHTMLIframe(t *testing.T) {
	li := &models.LineItem{
		CreativeType:    models.CreativeTypeHTML,
		CreativeFileURL: "https://cdn.test/unit.html",
		CreativeWidth:   300,
		CreativeHeight:  250,
	}
	got := RenderHTML(li)
	assert.Equal(t,
		`<iframe src="https://cdn.test/unit.html" sandbox="allow-scripts allow-same-origin" style="border: none; width: 300; height: 250;"></iframe>`,
		got)
}

func TestRenderHTMLIframeDimensionFallback(t *testing.T) {
	li := &models.LineItem{
		CreativeType:    models.CreativeTypeHTML,
		CreativeFileURL: "https://cdn.test/unit.html",
	}
	assert.Contains(t, RenderHTML(li), `width: 100%; height: 100%;`)
}

func TestRenderHTMLIframeEscapesURL(t *testing.T) {
	li := &models.LineItem{
		CreativeType:    models.CreativeTypeHTML,
		CreativeFileURL: `https://cdn.test/u.html?a=1&b="x"`,
	}
	got := RenderHTML(li)
	assert.Contains(t, got, "a=1&amp;b=&#34;x&#34;")
	assert.NotContains(t, got, `b="x"`)
}

func TestRenderHTMLImageAnchor(t *testing.T) {
	li := &models.LineItem{
		CreativeType:     models.CreativeTypeBanner,
		CreativeFileURL:  "https://cdn.test/a.png",
		CreativeClickURL: "https://brand.test/landing",
	}
	got := RenderHTML(li)
	assert.Equal(t,
		`<a href="https://brand.test/landing" target="_blank" rel="noopener noreferrer"><img src="https://cdn.test/a.png" alt="Advertisement" style="max-width: 100%; height: auto;" /></a>`,
		got)
}

func TestRenderHTMLImageDefaultClickURL(t *testing.T) {
	li := &models.LineItem{CreativeFileURL: "https://cdn.test/a.png"}
	assert.Contains(t, RenderHTML(li), `<a href="#"`)
}

func TestRenderHTMLEmpty(t *testing.T) {
	assert.Empty(t, RenderHTML(&models.LineItem{}))
}
