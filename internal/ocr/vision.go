package ocr

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/cost"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/pkg/mistral"
)

// Vision sends the whole document to the Mistral OCR model. It is the most
// expensive strategy and runs only when the others come up short.
type Vision struct {
	client mistral.Client
}

// NewVision creates the vision strategy.
func NewVision(client mistral.Client) *Vision {
	return &Vision{client: client}
}

// Name implements Strategy.
func (v *Vision) Name() string { return VisionName }

// Supports implements Strategy.
func (v *Vision) Supports(kind model.DocumentKind) bool {
	return kind == model.KindPDF || kind == model.KindSlideDeck
}

// Extract implements Strategy.
func (v *Vision) Extract(ctx context.Context, doc *model.DocumentInput) ([]model.Page, error) {
	resp, err := v.client.OCR(ctx, doc.Data, mimeType(doc.Kind))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: vision")
	}

	if l := cost.FromContext(ctx); l != nil {
		n := resp.UsageInfo.PagesProcessed
		if n == 0 {
			n = len(resp.Pages)
		}
		l.AddOCRPages(int64(n))
	}

	sort.Slice(resp.Pages, func(i, j int) bool { return resp.Pages[i].Index < resp.Pages[j].Index })
	texts := make([]string, len(resp.Pages))
	for i, p := range resp.Pages {
		texts[i] = p.Markdown
	}

	zap.L().Debug("ocr: vision pages", zap.Int("pages", len(texts)), zap.String("model", resp.Model))
	return pagesFrom(texts), nil
}
