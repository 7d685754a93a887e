// Package markup converts between OneNote page HTML and Markdown
package markup

import (
	"bytes"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Converter renders page content as Markdown and page bodies as XHTML
type Converter struct {
	toMarkdown *md.Converter
	toHTML     goldmark.Markdown
}

// New creates a Converter
func New() *Converter {
	return &Converter{
		toMarkdown: md.NewConverter("", true, nil),
		toHTML: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// OneNote only accepts well-formed XHTML bodies.
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

// ToMarkdown converts page HTML to Markdown
func (c *Converter) ToMarkdown(content string) (string, error) {
	logger.Debug("Converting page content to markdown", map[string]interface{}{
		"bytes": len(content),
	})

	out, err := c.toMarkdown.ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("failed to convert html to markdown: %w", err)
	}
	return out, nil
}

// ToHTML converts a Markdown page body to XHTML
func (c *Converter) ToHTML(source string) (string, error) {
	logger.Debug("Converting page body to html", map[string]interface{}{
		"bytes": len(source),
	})

	var buf bytes.Buffer
	if err := c.toHTML.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to html: %w", err)
	}
	return buf.String(), nil
}
