package ocr

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// GenericParser is the in-process fallback: a pure-Go PDF content-stream
// reader for PDFs, and a tag-stripping pass over every slide part for
// decks whose DrawingML the structured strategy could not make sense of.
type GenericParser struct{}

// NewGenericParser creates the generic-parser strategy.
func NewGenericParser() *GenericParser { return &GenericParser{} }

// Name implements Strategy.
func (g *GenericParser) Name() string { return GenericParserName }

// Supports implements Strategy.
func (g *GenericParser) Supports(kind model.DocumentKind) bool {
	return kind == model.KindPDF || kind == model.KindSlideDeck
}

// Extract implements Strategy.
func (g *GenericParser) Extract(ctx context.Context, doc *model.DocumentInput) ([]model.Page, error) {
	if doc.Kind == model.KindSlideDeck {
		return g.slides(ctx, doc.Data)
	}
	return g.pdf(ctx, doc.Data)
}

// pdf reads each page's plain text. The parser panics on some malformed
// streams, so a panic is turned into an error for that document.
func (g *GenericParser) pdf(ctx context.Context, data []byte) (pages []model.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, eris.Errorf("ocr: pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: open pdf")
	}

	texts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: pdf page %d", i)
		}
		texts = append(texts, text)
	}
	return pagesFrom(texts), nil
}

var (
	xmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	xmlSpaceRe = regexp.MustCompile(`\s+`)
)

func (g *GenericParser) slides(ctx context.Context, data []byte) ([]model.Page, error) {
	parts, err := openSlides(data)
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
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read slide %d", p.num)
		}
		text := xmlTagRe.ReplaceAllString(string(raw), " ")
		texts[i] = strings.TrimSpace(xmlSpaceRe.ReplaceAllString(unescapeXML(text), " "))
	}
	return slidePages(parts, texts), nil
}

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

func unescapeXML(s string) string { return xmlEntities.Replace(s) }
