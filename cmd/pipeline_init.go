package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/cost"
	"github.com/maroofsyyed/Duesense1/internal/enrich"
	"github.com/maroofsyyed/Duesense1/internal/extract"
	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/ocr"
	"github.com/maroofsyyed/Duesense1/internal/pipeline"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
	"github.com/maroofsyyed/Duesense1/internal/scoring"
	"github.com/maroofsyyed/Duesense1/internal/scrape"
	"github.com/maroofsyyed/Duesense1/internal/store"
	"github.com/maroofsyyed/Duesense1/internal/synth"
	anthropicpkg "github.com/maroofsyyed/Duesense1/pkg/anthropic"
	"github.com/maroofsyyed/Duesense1/pkg/firecrawl"
	"github.com/maroofsyyed/Duesense1/pkg/github"
	"github.com/maroofsyyed/Duesense1/pkg/jina"
	"github.com/maroofsyyed/Duesense1/pkg/mistral"
	"github.com/maroofsyyed/Duesense1/pkg/perplexity"
)

// pipelineEnv holds the store and the pipeline built on it.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initReadOnly opens the store for status and result queries. The stage
// components are not built, so no API keys are needed.
func initReadOnly(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("read"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	retry := resilience.FromRetryConfig(cfg.Retry)
	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(st, store.NewStageWriter(st, retry), pipeline.Stages{}),
	}, nil
}

// initPipeline sets up the store, every API client and the four stage
// components. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	stages, err := buildStages()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	retry := resilience.FromRetryConfig(cfg.Retry)
	p := pipeline.New(st, store.NewStageWriter(st, retry), stages,
		pipeline.WithCalculator(cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing))),
	)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

func buildStages() (pipeline.Stages, error) {
	retry := resilience.FromRetryConfig(cfg.Retry)

	anthropicOpts := []anthropicpkg.Option{}
	if cfg.Anthropic.BaseURL != "" {
		anthropicOpts = append(anthropicOpts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicOpts...)
	gen := llm.NewService(anthropicClient, llm.ConfigFrom(cfg.Anthropic, cfg.Retry))

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL), jina.WithRetry(retry)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	// Build scrape chain: Jina primary, Firecrawl fallback, plain HTTP last.
	scrapers := []scrape.Scraper{scrape.NewJinaAdapter(jinaClient)}
	if cfg.Firecrawl.Key != "" {
		firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(firecrawlClient))
	} else {
		zap.L().Debug("DUESENSE_FIRECRAWL_KEY not set, firecrawl fallback disabled")
	}
	scrapers = append(scrapers, scrape.NewLocalScraper())
	chain := scrape.NewChain(scrapers...)

	strategies := []ocr.Strategy{
		ocr.NewStructuredText(cfg.Extraction.PdfToTextPath),
		ocr.NewGenericParser(),
	}
	if cfg.Extraction.Vision && cfg.Mistral.Key != "" {
		mistralClient := mistral.NewClient(cfg.Mistral.Key, mistral.WithBaseURL(cfg.Mistral.BaseURL), mistral.WithModel(cfg.Mistral.Model))
		strategies = append(strategies, ocr.NewVision(mistralClient))
	} else {
		zap.L().Info("vision ocr disabled")
	}
	coordinator := extract.New(gen, strategies,
		extract.WithFetcher(chain),
		extract.WithStrategyTimeout(seconds(cfg.Extraction.StrategyTimeout)),
	)

	deps := enrich.Deps{
		Crawler: chain,
		Fetcher: chain,
		Jina:    jinaClient,
		LLM:     gen,
		GitHub:  github.NewClient(cfg.GitHub.Token, github.WithBaseURL(cfg.GitHub.BaseURL), github.WithRateLimit(cfg.GitHub.RequestsPerSec)),
	}
	if cfg.Perplexity.Key != "" {
		deps.Perplexity = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRateLimit(cfg.Perplexity.RequestsPerSec),
			perplexity.WithRetry(retry),
		)
	} else {
		zap.L().Warn("DUESENSE_PERPLEXITY_KEY not set, research sources will record errors")
	}
	sources, err := enrich.Roster(cfg.Enrichment.Sources, deps)
	if err != nil {
		return pipeline.Stages{}, err
	}
	orchestrator, err := enrich.New(sources,
		enrich.WithTimeout(seconds(cfg.Enrichment.TimeoutSecs)),
		enrich.WithBreakers(resilience.NewServiceBreakers(resilience.FromCircuitConfig(cfg.Circuit))),
	)
	if err != nil {
		return pipeline.Stages{}, err
	}

	engine, err := scoring.NewDefaultEngine(gen, scoring.WithAgentTimeout(seconds(cfg.Scoring.AgentTimeoutSecs)))
	if err != nil {
		return pipeline.Stages{}, err
	}

	synthOpts := []synth.Option{
		synth.WithAttempts(cfg.Synthesis.SectionAttempts),
		synth.WithSectionTimeout(seconds(cfg.Synthesis.SectionTimeoutSecs)),
		synth.WithBackoff(retry),
	}
	if cfg.Synthesis.SectionsFile != "" {
		sections, err := synth.LoadSections(cfg.Synthesis.SectionsFile)
		if err != nil {
			return pipeline.Stages{}, err
		}
		synthOpts = append(synthOpts, synth.WithSections(sections))
	}
	synthesizer, err := synth.New(gen, synthOpts...)
	if err != nil {
		return pipeline.Stages{}, err
	}

	zap.L().Info("pipeline initialized",
		zap.Strings("scrapers", chain.Names()),
		zap.Strings("sources", orchestrator.Names()),
		zap.Int("document_strategies", len(strategies)),
	)

	return pipeline.Stages{
		Extractor: coordinator,
		Enricher:  orchestrator,
		Scorer:    engine,
		Narrator:  synthesizer,
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
