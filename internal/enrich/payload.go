package enrich

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// toPayload converts a typed payload into the JSON-shaped map stored on the
// record, so readers see the same value types before and after a store
// round-trip.
func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal payload")
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "enrich: unmarshal payload")
	}
	return out, nil
}

// companyName returns the bundle's company name or an error when it is
// unknown.
func companyName(b *model.ExtractionBundle) (string, error) {
	if b == nil || !model.Known(b.Company.Name) {
		return "", eris.Wrap(ErrMissingInput, "no company name")
	}
	return b.Company.Name, nil
}

// websiteURL returns the company website as an absolute URL.
func websiteURL(b *model.ExtractionBundle) (string, error) {
	if b == nil || !model.Known(b.Company.Website) {
		return "", eris.Wrap(ErrMissingInput, "no website")
	}
	raw := b.Company.Website
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", eris.Wrapf(ErrMissingInput, "invalid website %q", b.Company.Website)
	}
	return u.String(), nil
}

// domain is the bare host of the company website, without "www.".
func domain(b *model.ExtractionBundle) string {
	raw, err := websiteURL(b)
	if err != nil {
		return ""
	}
	u, _ := url.Parse(raw)
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// unavailable stands in for a source whose client is not configured so the
// roster, and the record map, keep their shape.
type unavailable struct {
	name   string
	reason string
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Lookup(_ context.Context, _ *model.ExtractionBundle) (map[string]any, error) {
	return nil, eris.New(u.reason)
}
