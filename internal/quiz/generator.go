package quiz

import (
	"context"
	"time"

	"github.com/local/pdfquiz/internal/ai"
	"github.com/local/pdfquiz/internal/limiter"
	"github.com/local/pdfquiz/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
	DefaultTimeout     = 30 * time.Second
)

type GeneratorOptions struct {
	// APIKey is read at call time.
	APIKey      func() string
	KeyPrefix   string
	Model       string
	// Temperature nil means DefaultTemperature; zero is kept.
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
}

// Generator asks the provider for a quiz. It never retries.
type Generator struct {
	client    ai.Client
	limiter   *limiter.SlidingWindow
	apiKey    func() string
	keyPrefix string
	model     string
	temp      float32
	maxTokens int
	timeout   time.Duration
}

func NewGenerator(client ai.Client, lim *limiter.SlidingWindow, opts GeneratorOptions) *Generator {
	if opts.APIKey == nil {
		opts.APIKey = func() string { return "" }
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	temp := float32(DefaultTemperature)
	if opts.Temperature != nil && *opts.Temperature >= 0 {
		temp = *opts.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if lim == nil {
		lim = limiter.New(limiter.Options{})
	}
	return &Generator{
		client:    client,
		limiter:   lim,
		apiKey:    opts.APIKey,
		keyPrefix: opts.KeyPrefix,
		model:     opts.Model,
		temp:      temp,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
	}
}

// Preflight runs the checks that need no network, in the same order as Generate.
// It does not consume rate limit budget.
func (g *Generator) Preflight(text string, s Settings) error {
	if err := g.CheckRequest(s); err != nil {
		return err
	}
	return ValidateText(text)
}

// CheckRequest validates the credential and then the settings. Callers run it
// before extraction, since OCR uses the same provider credential.
func (g *Generator) CheckRequest(s Settings) error {
	if err := ValidateCredential(g.apiKey(), g.keyPrefix); err != nil {
		return err
	}
	return ValidateSettings(s)
}

// Generate validates its inputs, consumes one rate limit slot and makes a
// single provider call. The slot is spent even when the call fails.
func (g *Generator) Generate(ctx context.Context, text string, s Settings) ([]RawQuestion, error) {
	if err := g.Preflight(text, s); err != nil {
		return nil, err
	}

	prompt := BuildPrompt(text, s)

	if wait, ok := g.limiter.Allow(); !ok {
		metrics.IncRateLimited()
		log.Warn().Dur("retry_after", wait).Msg("local rate limit reached")
		return nil, rateLimitError(wait)
	}

	start := time.Now()
	resp, err := g.client.Do(ctx, ai.Request{
		Model:       g.model,
		Prompt:      prompt,
		Temperature: g.temp,
		MaxTokens:   g.maxTokens,
		Timeout:     g.timeout,
	})
	if err != nil {
		qe := classifyProviderError(err)
		g.observe(qe, start)
		log.Error().Err(err).Str("kind", string(qe.Kind)).Str("provider", g.client.Name()).Msg("quiz request failed")
		return nil, qe
	}

	questions, err := ParseResponse(resp.Text)
	g.observe(err, start)
	if err != nil {
		log.Warn().
			Err(err).
			Str("kind", string(KindOf(err))).
			Int("response_chars", len(resp.Text)).
			Msg("quiz response rejected")
		return nil, err
	}

	log.Info().
		Int("questions", len(questions)).
		Int("requested", s.NumQuestions).
		Str("difficulty", string(s.Difficulty)).
		Int("tokens_in", resp.TokensIn).
		Int("tokens_out", resp.TokensOut).
		Dur("took", time.Since(start)).
		Msg("quiz generated")
	return questions, nil
}

func (g *Generator) observe(err error, start time.Time) {
	metrics.ObserveProvider(g.client.Name(), g.model, metricResult(err), time.Since(start))
}

// TimeUntilReset exposes the limiter's wait hint for status reporting.
func (g *Generator) TimeUntilReset() time.Duration { return g.limiter.TimeUntilReset() }
