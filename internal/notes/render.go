// ABOUTME: Markdown rendering of note bodies for API responses
// ABOUTME: Raw HTML in bodies is dropped by goldmark's default (unsafe-off) renderer

package notes

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrRenderFailed is returned when a body cannot be converted to HTML
var ErrRenderFailed = errors.New("note render failed")

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts a note body from Markdown to HTML.
func RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}
