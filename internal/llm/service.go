// Package llm is the generation service shared by every stage: prompt in,
// text out, with per-call model fallback and JSON normalization.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/config"
	"github.com/maroofsyyed/Duesense1/internal/cost"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
	"github.com/maroofsyyed/Duesense1/pkg/anthropic"
)

// Variant selects the model family a request starts on.
type Variant string

// Model variants.
const (
	VariantQuality Variant = "quality"
	VariantFast    Variant = "fast"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = eris.New("llm: empty response")

// Request is one generation call.
type Request struct {
	Operation   string // log label, e.g. "score.traction"
	System      string
	Prompt      string
	Variant     Variant
	MaxTokens   int64    // 0 uses the service default
	Temperature *float64 // nil uses the service default
}

// Response is the outcome of a generation call.
type Response struct {
	Text       string
	Model      string
	Downgraded bool
	Attempts   int
	Usage      anthropic.TokenUsage
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config configures a Service.
type Config struct {
	QualityModel    string
	FastModel       string
	QualityAttempts int
	FastAttempts    int
	MaxTokens       int64
	Temperature     float64
	CallTimeout     time.Duration
	Backoff         resilience.RetryConfig
}

// ConfigFrom builds a service Config from application config.
func ConfigFrom(a config.AnthropicConfig, r config.RetryConfig) Config {
	return Config{
		QualityModel:    a.QualityModel,
		FastModel:       a.FastModel,
		QualityAttempts: a.QualityAttempts,
		FastAttempts:    a.FastAttempts,
		MaxTokens:       a.MaxTokens,
		Temperature:     a.Temperature,
		CallTimeout:     time.Duration(a.TimeoutSecs) * time.Second,
		Backoff:         resilience.FromRetryConfig(r),
	}
}

// Service implements Generator on top of the Anthropic client.
type Service struct {
	client anthropic.Client
	cfg    Config
}

// NewService creates a generation service.
func NewService(client anthropic.Client, cfg Config) *Service {
	if cfg.QualityAttempts <= 0 {
		cfg.QualityAttempts = 2
	}
	if cfg.FastAttempts <= 0 {
		cfg.FastAttempts = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.FastModel == "" {
		cfg.FastModel = cfg.QualityModel
	}
	return &Service{client: client, cfg: cfg}
}

// ladder builds the fallback tiers for one call. Quality requests fall back
// to the fast model; fast requests have nowhere further to go.
func (s *Service) ladder(v Variant) resilience.Ladder {
	fast := resilience.Tier{Model: s.cfg.FastModel, MaxAttempts: s.cfg.FastAttempts}
	l := resilience.Ladder{Backoff: s.cfg.Backoff}
	if v == VariantFast || s.cfg.QualityModel == "" || s.cfg.QualityModel == s.cfg.FastModel {
		l.Tiers = []resilience.Tier{fast}
		return l
	}
	l.Tiers = []resilience.Tier{
		{Model: s.cfg.QualityModel, MaxAttempts: s.cfg.QualityAttempts},
		fast,
	}
	return l
}

// Generate runs req against the variant's ladder. Token usage of every
// attempt is added to the run ledger carried by ctx, if any.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}
	temp := s.cfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	ledger := cost.FromContext(ctx)
	var usage anthropic.TokenUsage

	msg, res, err := resilience.RunLadder(ctx, s.ladder(req.Variant), func(ctx context.Context, model string) (*anthropic.MessageResponse, error) {
		callCtx := ctx
		if s.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
			defer cancel()
		}

		resp, err := s.client.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:       model,
			MaxTokens:   maxTokens,
			System:      req.System,
			Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
			Temperature: &temp,
		})
		if err != nil {
			if callCtx.Err() != nil && ctx.Err() == nil {
				return nil, resilience.NewTransientError(eris.Wrapf(err, "llm: %s timed out", model), 0)
			}
			return nil, resilience.Classify(err, anthropic.StatusCode(err))
		}

		usage = usage.Add(resp.Usage)
		if ledger != nil {
			ledger.AddTokens(model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
		if strings.TrimSpace(resp.Text()) == "" {
			return nil, resilience.NewTransientError(ErrEmptyResponse, 0)
		}
		return resp, nil
	})
	if err != nil {
		zap.L().Warn("llm: generation failed",
			zap.String("operation", req.Operation),
			zap.String("model", res.Model),
			zap.Int("attempts", res.Attempts),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "llm: %s", req.Operation)
	}

	usage.LogCost(res.Model, req.Operation)
	if res.Downgraded {
		zap.L().Info("llm: served by fallback model",
			zap.String("operation", req.Operation),
			zap.String("model", res.Model),
		)
	}

	return &Response{
		Text:       msg.Text(),
		Model:      res.Model,
		Downgraded: res.Downgraded,
		Attempts:   res.Attempts,
		Usage:      usage,
	}, nil
}
