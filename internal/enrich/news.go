package enrich

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/pkg/jina"
)

const maxArticles = 10

type article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type newsPayload struct {
	Query    string    `json:"query"`
	Count    int       `json:"count"`
	Articles []article `json:"articles"`
}

// NewsSource searches recent coverage of the company.
type NewsSource struct {
	client jina.Client
}

// NewNewsSource creates the news source.
func NewNewsSource(client jina.Client) *NewsSource {
	return &NewsSource{client: client}
}

// Name implements Source.
func (s *NewsSource) Name() string { return "news" }

// Lookup implements Source.
func (s *NewsSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	name, err := companyName(b)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("%q startup funding news", name)
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: news search")
	}

	p := newsPayload{Query: query, Articles: []article{}}
	for _, r := range resp.Data {
		if len(p.Articles) == maxArticles {
			break
		}
		desc := r.Description
		if desc == "" {
			desc = excerpt(r.Content, 300)
		}
		p.Articles = append(p.Articles, article{Title: r.Title, URL: r.URL, Description: desc})
	}
	p.Count = len(p.Articles)
	return toPayload(p)
}
