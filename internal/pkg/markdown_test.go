package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("**bold** and [link](https://example.com)")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestRenderMarkdownStripsScripts(t *testing.T) {
	out := RenderMarkdown("hello <script>alert(1)</script>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "alert(1)</script>")
}
