package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	llmmocks "github.com/maroofsyyed/Duesense1/internal/llm/mocks"
	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

var fastBackoff = WithBackoff(resilience.RetryConfig{
	InitialBackoff: time.Millisecond,
	MaxBackoff:     time.Millisecond,
	Multiplier:     1,
})

func op(key string) any {
	return mock.MatchedBy(func(r llm.Request) bool { return r.Operation == "synth."+key })
}

func deckBundle() *model.ExtractionBundle {
	b := model.NewDefaultBundle()
	b.Company.Name = "Acme Robotics"
	b.PageLabel = "page"
	b.Pages = []model.Page{{Number: 1, Text: "Acme Robotics"}, {Number: 2, Text: ""}, {Number: 3, Text: "ARR $1.2M"}}
	b.Inputs = []model.DocumentKind{model.KindPDF, model.KindWebsite}
	return b
}

func records() map[string]model.EnrichmentRecord {
	return map[string]model.EnrichmentRecord{
		"news":   {Source: "news", Payload: map[string]any{"count": float64(2)}},
		"github": {Source: "github", Error: "source github: timeout: context deadline exceeded", Timeout: true},
	}
}

func TestKnownSources(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"page-1", "page-3", "website", "enrichment:news", "score"},
		KnownSources(deckBundle(), records()))

	deck := deckBundle()
	deck.PageLabel = "slide"
	deck.Inputs = []model.DocumentKind{model.KindSlideDeck, model.KindProfile, model.KindText}
	assert.Equal(t,
		[]string{"slide-1", "slide-3", "profile", "text", "score"},
		KnownSources(deck, nil))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	known := sourceSet([]string{"page-1", "page-3", "enrichment:news", "score"})
	content := "Acme Robotics builds picking robots [SOURCE: page-1]. ARR is $1.2M [SOURCE:page-3].\n\n" +
		"Revenue grew 300% last year. [SOURCE: page-9]\n" +
		"- Press covered the seed round [SOURCE: enrichment:news, website]"

	cited, unverified := Validate(content, known)

	require.Len(t, cited, 5)
	assert.Equal(t, model.Citation{Claim: "Acme Robotics builds picking robots", Source: "page-1"}, cited[0])
	assert.Equal(t, model.Citation{Claim: "ARR is $1.2M", Source: "page-3"}, cited[1])
	assert.Equal(t, "Revenue grew 300% last year.", cited[2].Claim)
	assert.Equal(t, "Press covered the seed round", cited[3].Claim)

	assert.Equal(t, []model.Citation{
		{Claim: "Revenue grew 300% last year.", Source: "page-9"},
		{Claim: "Press covered the seed round", Source: "website"},
	}, unverified)
}

func TestValidate_ExactMembership(t *testing.T) {
	t.Parallel()

	known := sourceSet([]string{"page-1"})
	_, unverified := Validate("A [SOURCE: Page-1]. B [SOURCE: page-1 ]. C [SOURCE: page-10].", known)

	require.Len(t, unverified, 2)
	assert.Equal(t, "Page-1", unverified[0].Source)
	assert.Equal(t, "page-10", unverified[1].Source)
}

func TestGenerate_AllSections(t *testing.T) {
	t.Parallel()

	gen := llmmocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return strings.Contains(r.Prompt, "- page-3\n") &&
			strings.Contains(r.Prompt, "- enrichment:news\n") &&
			!strings.Contains(r.Prompt, "- enrichment:github") &&
			strings.Contains(r.Prompt, "Composite 67.0/100")
	})).Return(&llm.Response{Text: "ARR is $1.2M [SOURCE: page-3]."}, nil).Times(len(DefaultSections))

	s, err := New(gen, fastBackoff)
	require.NoError(t, err)

	score := &model.ScoreRecord{CompositeScore: 67, Tier: model.Tier3}
	doc := s.Generate(context.Background(), deckBundle(), records(), score)

	require.Len(t, doc.Sections, len(DefaultSections))
	for i, sec := range doc.Sections {
		assert.Equal(t, DefaultSections[i].Key, sec.Key)
		assert.False(t, sec.Failed)
		assert.Equal(t, 1, sec.Attempts)
		assert.Len(t, sec.Citations, 1)
		assert.Empty(t, sec.Unverified)
	}
	assert.Equal(t, "executive_summary", doc.Sections[0].Key)
	assert.Equal(t, "key_insights", doc.Sections[10].Key)
	assert.Equal(t, "due_diligence_roadmap", doc.Sections[11].Key)
	assert.Zero(t, doc.UnverifiedCount())
	assert.False(t, doc.GeneratedAt.IsZero())
}

// One section keeps failing: it gets the placeholder after two attempts and
// every other section is unaffected.
func TestGenerate_SectionFailureIsIsolated(t *testing.T) {
	t.Parallel()

	gen := llmmocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, op("market_opportunity")).
		Return(nil, errors.New("overloaded")).Twice()
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "Content [SOURCE: score]."}, nil)

	s, err := New(gen, fastBackoff)
	require.NoError(t, err)

	doc := s.Generate(context.Background(), deckBundle(), records(), &model.ScoreRecord{})
	require.Len(t, doc.Sections, len(DefaultSections))

	failed, ok := doc.Section("market_opportunity")
	require.True(t, ok)
	assert.True(t, failed.Failed)
	assert.Equal(t, model.SectionPlaceholder, failed.Content)
	assert.Equal(t, 2, failed.Attempts)
	assert.Contains(t, failed.Error, "overloaded")

	for _, sec := range doc.Sections {
		if sec.Key != "market_opportunity" {
			assert.False(t, sec.Failed, sec.Key)
			assert.Equal(t, "Content [SOURCE: score].", sec.Content)
		}
	}
}

func TestGenerate_RetrySucceeds(t *testing.T) {
	t.Parallel()

	gen := llmmocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything).Return(&llm.Response{Text: "  "}, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(&llm.Response{Text: "Fine [SOURCE: score]."}, nil).Once()

	s, err := New(gen, fastBackoff, WithSections(DefaultSections[:1]))
	require.NoError(t, err)

	doc := s.Generate(context.Background(), deckBundle(), nil, nil)
	require.Len(t, doc.Sections, 1)
	assert.False(t, doc.Sections[0].Failed)
	assert.Equal(t, 2, doc.Sections[0].Attempts)
}

func TestGenerate_UnverifiedCitationsKeepSection(t *testing.T) {
	t.Parallel()

	gen := llmmocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "Acme has 40 enterprise customers [SOURCE: enrichment:crunchbase]."}, nil).Once()

	s, err := New(gen, fastBackoff, WithSections(DefaultSections[6:7]))
	require.NoError(t, err)

	doc := s.Generate(context.Background(), deckBundle(), records(), nil)
	sec := doc.Sections[0]
	assert.False(t, sec.Failed)
	assert.Contains(t, sec.Content, "40 enterprise customers")
	require.Len(t, sec.Unverified, 1)
	assert.Equal(t, "enrichment:crunchbase", sec.Unverified[0].Source)
	assert.Equal(t, 1, doc.UnverifiedCount())
}

type slowGenerator struct{ calls atomic.Int32 }

func (g *slowGenerator) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	g.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGenerate_SectionTimeout(t *testing.T) {
	t.Parallel()

	gen := &slowGenerator{}
	s, err := New(gen, fastBackoff, WithSectionTimeout(20*time.Millisecond), WithSections(DefaultSections[:3]))
	require.NoError(t, err)

	doc := s.Generate(context.Background(), deckBundle(), nil, nil)
	for _, sec := range doc.Sections {
		assert.True(t, sec.Failed)
		assert.Equal(t, 2, sec.Attempts)
	}
	assert.Equal(t, int32(6), gen.calls.Load())
}

func TestLoadSections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sections:
  - key: executive_summary
    title: Executive Summary
    brief: One paragraph.
  - key: risks
    title: Risks
`), 0o600))

	specs, err := LoadSections(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "One paragraph.", specs[0].Brief)
	assert.Equal(t, "risks", specs[1].Key)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("sections:\n  - {key: a, title: A}\n  - {key: a, title: B}\n"), 0o600))
	_, err = LoadSections(dup)
	assert.Error(t, err)

	_, err = LoadSections(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
