package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// StructuredText reads the document's own text layer: pdftotext for PDFs
// and the slide XML for decks.
type StructuredText struct {
	pdf *PdfToText
}

// NewStructuredText creates the structured-text strategy.
func NewStructuredText(pdfToTextPath string) *StructuredText {
	return &StructuredText{pdf: NewPdfToText(pdfToTextPath)}
}

// Name implements Strategy.
func (s *StructuredText) Name() string { return StructuredTextName }

// Supports implements Strategy.
func (s *StructuredText) Supports(kind model.DocumentKind) bool {
	return kind == model.KindPDF || kind == model.KindSlideDeck
}

// Extract implements Strategy.
func (s *StructuredText) Extract(ctx context.Context, doc *model.DocumentInput) ([]model.Page, error) {
	if doc.Kind == model.KindPDF {
		return s.pdf.Extract(ctx, doc)
	}

	parts, err := openSlides(doc.Data)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(parts))
	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := p.file.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: open slide %d", p.num)
		}
		text, err := slideText(rc)
		_ = rc.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: slide %d", p.num)
		}
		texts[i] = text
	}
	return slidePages(parts, texts), nil
}
