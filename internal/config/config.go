package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Mistral    MistralConfig    `yaml:"mistral" mapstructure:"mistral"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Synthesis  SynthesisConfig  `yaml:"synthesis" mapstructure:"synthesis"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig configures the generation service. QualityModel backs
// structuring, scoring and synthesis; FastModel is the rate-limit fallback
// and the model for lightweight calls.
type AnthropicConfig struct {
	Key             string  `yaml:"key" mapstructure:"key"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	QualityModel    string  `yaml:"quality_model" mapstructure:"quality_model"`
	FastModel       string  `yaml:"fast_model" mapstructure:"fast_model"`
	MaxTokens       int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QualityAttempts int     `yaml:"quality_attempts" mapstructure:"quality_attempts"`
	FastAttempts    int     `yaml:"fast_attempts" mapstructure:"fast_attempts"`
}

// MistralConfig configures the vision OCR strategy.
type MistralConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"ocr_model" mapstructure:"ocr_model"`
}

// JinaConfig holds Jina AI credentials.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl credentials.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Model          string  `yaml:"model" mapstructure:"model"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// GitHubConfig holds GitHub REST settings. Token is optional.
type GitHubConfig struct {
	Token          string  `yaml:"token" mapstructure:"token"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// PricingConfig holds per-provider pricing used for run cost accounting.
type PricingConfig struct {
	Jina       JinaPricing       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityPricing `yaml:"perplexity" mapstructure:"perplexity"`
	Mistral    MistralPricing    `yaml:"mistral" mapstructure:"mistral"`
}

// JinaPricing is the Jina price per million tokens.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// PerplexityPricing is the Perplexity price per query.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// MistralPricing is the Mistral OCR price per page.
type MistralPricing struct {
	PerPage float64 `yaml:"per_page" mapstructure:"per_page"`
}

// ExtractionConfig configures document handling.
type ExtractionConfig struct {
	PdfToTextPath   string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	Vision          bool   `yaml:"vision" mapstructure:"vision"`
	StrategyTimeout int    `yaml:"strategy_timeout_secs" mapstructure:"strategy_timeout_secs"`
}

// EnrichmentConfig configures the source fan-out.
type EnrichmentConfig struct {
	Sources     []string `yaml:"sources" mapstructure:"sources"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScoringConfig configures the scoring agents.
type ScoringConfig struct {
	AgentTimeoutSecs int `yaml:"agent_timeout_secs" mapstructure:"agent_timeout_secs"`
}

// SynthesisConfig configures narrative generation.
type SynthesisConfig struct {
	SectionTimeoutSecs int    `yaml:"section_timeout_secs" mapstructure:"section_timeout_secs"`
	SectionAttempts    int    `yaml:"section_attempts" mapstructure:"section_attempts"`
	SectionsFile       string `yaml:"sections_file" mapstructure:"sections_file"`
}

// RetryConfig configures the shared backoff policy.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures per-source circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultSources is the enrichment roster used when none is configured.
var DefaultSources = []string{
	"website",
	"news",
	"github",
	"market",
	"competitors",
	"founder_profiles",
	"linkedin",
	"website_intelligence",
	"social_signals",
	"glassdoor",
	"company_profile",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DUESENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "duesense.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.quality_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("anthropic.timeout_secs", 90)
	v.SetDefault("anthropic.quality_attempts", 2)
	v.SetDefault("anthropic.fast_attempts", 2)
	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("mistral.ocr_model", "mistral-ocr-latest")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.requests_per_sec", 2.0)
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.requests_per_sec", 1.0)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.mistral.per_page", 0.001)
	v.SetDefault("extraction.pdftotext_path", "pdftotext")
	v.SetDefault("extraction.vision", true)
	v.SetDefault("extraction.strategy_timeout_secs", 120)
	v.SetDefault("enrichment.sources", DefaultSources)
	v.SetDefault("enrichment.timeout_secs", 30)
	v.SetDefault("scoring.agent_timeout_secs", 120)
	v.SetDefault("synthesis.section_timeout_secs", 120)
	v.SetDefault("synthesis.section_attempts", 2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 20000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present. Mode is
// "pipeline" for commands that run deals and "read" for status queries.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "DUESENSE_STORE_DATABASE_URL")
	}

	if mode == "pipeline" {
		if c.Anthropic.Key == "" {
			missing = append(missing, "DUESENSE_ANTHROPIC_KEY")
		}
		if c.Anthropic.QualityModel == "" || c.Anthropic.FastModel == "" {
			missing = append(missing, "DUESENSE_ANTHROPIC_QUALITY_MODEL/FAST_MODEL")
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
