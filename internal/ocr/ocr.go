// Package ocr holds the document text strategies tried, in order, by the
// extraction coordinator: structured text, a generic parser, and vision OCR.
package ocr

import (
	"context"
	"strings"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// Strategy turns a document into per-page text.
type Strategy interface {
	Name() string
	Supports(kind model.DocumentKind) bool
	Extract(ctx context.Context, doc *model.DocumentInput) ([]model.Page, error)
}

// Strategy names.
const (
	StructuredTextName = "structured_text"
	GenericParserName  = "generic_parser"
	VisionName         = "vision"
)

// TotalChars is the trimmed text length across pages.
func TotalChars(pages []model.Page) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p.Text))
	}
	return n
}

// pagesFrom numbers texts from 1, dropping nothing so page numbers match
// the source document. Slide decks use slidePages instead.
func pagesFrom(texts []string) []model.Page {
	pages := make([]model.Page, len(texts))
	for i, t := range texts {
		pages[i] = model.Page{Number: i + 1, Text: strings.TrimRight(t, " \n\t\r")}
	}
	return pages
}

// mimeType maps a document kind to the MIME type sent to remote OCR.
func mimeType(kind model.DocumentKind) string {
	if kind == model.KindSlideDeck {
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	}
	return "application/pdf"
}
