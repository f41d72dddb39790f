// Package render turns a planned document into print-ready HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"dayplan/internal/model"
)

// reMarkable 2 page size.
const (
	PaperWidthInches  = 5.3
	PaperHeightInches = 7.0
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("document.html.tmpl").Funcs(template.FuncMap{
	"isNotes": func(k model.PageKind) bool { return k == model.PageNotes },
	"inches":  func(v float64) string { return fmt.Sprintf("%.2fin", v) },
}).ParseFS(templateFS, "templates/*.tmpl"))

type view struct {
	model.Document
	PaperWidth  float64
	PaperHeight float64
}

// HTML renders every page of doc as one <section class="page">, with page
// breaks in between. The body carries data-ready="true" once rendered.
func HTML(doc model.Document) ([]byte, error) {
	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "document.html.tmpl", view{
		Document:    doc,
		PaperWidth:  PaperWidthInches,
		PaperHeight: PaperHeightInches,
	})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}
