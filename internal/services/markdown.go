package services

import (
	"bytes"
	"fmt"
	"html/template"

	highlighting "github.com/yuin/goldmark-highlighting"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown renders bot answers to HTML. Raw HTML in the source is not passed through.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a renderer with GitHub flavoured extensions and syntax highlighting using
// the named chroma style.
func NewMarkdown(style string) Markdown {
	if style == "" {
		style = "monokai"
	}
	return Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle(style)),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

// Render converts source to HTML that is safe to embed in a template.
func (m Markdown) Render(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	// nolint:gosec // goldmark escapes raw HTML unless html.WithUnsafe is set.
	return template.HTML(buf.String()), nil
}
