// Package ui embeds the preview page served at the root of the preview
// server.
package ui

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed index.html
var indexHTML string

var index = template.Must(template.New("index").Parse(indexHTML))

// Page holds the values rendered into the preview page.
type Page struct {
	Title string
	// Events switches status refreshes from polling to the SSE stream.
	Events bool
}

// Render writes the preview page to w.
func Render(w io.Writer, p Page) error {
	return index.Execute(w, p)
}
