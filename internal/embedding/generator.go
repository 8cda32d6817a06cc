// Package embedding turns normalized text into embedding vectors through a configured provider.
//
// Generate never returns an error: every failure (blank input, transport error, timeout,
// malformed or empty vector) is logged and reported as "unavailable" so callers can fall back.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/pkg/cache"
	"github.com/formbricks/riskmatch/pkg/embeddings"
)

// DefaultTimeout bounds a single provider call when Params.Timeout is zero.
const DefaultTimeout = 30 * time.Second

var errRateLimited = errors.New("embedding: rate limiter wait failed")

// Provider generates embedding vectors for text.
// Implemented by provider-specific clients (OpenAI, Google Gemini, Ollama).
type Provider interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Params configures a Generator. Cache, Metrics and CacheMetrics may be nil.
type Params struct {
	Provider     Provider
	ProviderName string
	Model        string
	Timeout      time.Duration
	// RateLimit is the maximum provider calls per second. 0 disables limiting.
	RateLimit float64
	// Normalize scales every returned vector to unit length.
	Normalize    bool
	Cache        *cache.Loader[[]float32]
	Metrics      observability.EmbeddingMetrics
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// Generator wraps a Provider with a per-call timeout, optional rate limiting, an optional
// query cache and failure logging.
type Generator struct {
	provider     Provider
	providerName string
	model        string
	timeout      time.Duration
	limiter      *rate.Limiter
	normalize    bool
	cache        *cache.Loader[[]float32]
	metrics      observability.EmbeddingMetrics
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// NewGenerator creates a Generator. A nil Provider yields a Generator whose Generate always
// reports unavailable (embeddings disabled).
func NewGenerator(p Params) *Generator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if p.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.RateLimit), 1)
	}

	return &Generator{
		provider:     p.Provider,
		providerName: p.ProviderName,
		model:        p.Model,
		timeout:      timeout,
		limiter:      limiter,
		normalize:    p.Normalize,
		cache:        p.Cache,
		metrics:      p.Metrics,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}
}

// Enabled reports whether a provider is configured.
func (g *Generator) Enabled() bool {
	return g != nil && g.provider != nil
}

// Generate returns the embedding for text and true, or nil and false when no embedding could be
// produced. Vectors served from the cache are shared; callers must not modify them.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		g.record(ctx, "empty_input", 0)
		g.logger.DebugContext(ctx, "embedding: skip, empty input")

		return nil, false
	}

	if !g.Enabled() {
		return nil, false
	}

	var (
		vec []float32
		err error
	)

	if g.cache != nil {
		var hit bool

		vec, hit, err = g.cache.Get(ctx, text, func(loadCtx context.Context) ([]float32, error) {
			return g.fetch(loadCtx, text)
		})
		if err == nil {
			g.recordCache(ctx, hit)

			if hit {
				g.record(ctx, "cache_hit", 0)
			}
		}
	} else {
		vec, err = g.fetch(ctx, text)
	}

	if err != nil {
		g.logFailure(ctx, err, text)

		return nil, false
	}

	return vec, true
}

// fetch performs one rate-limited, time-bounded provider call and validates the result.
func (g *Generator) fetch(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.record(ctx, "rate_limited", time.Since(start))

			return nil, fmt.Errorf("%w: %w", errRateLimited, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vec, err := g.provider.CreateEmbedding(callCtx, text)
	if err == nil {
		err = validate(vec)
	}

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}

		g.record(ctx, failureStatus(err), time.Since(start))

		return nil, err
	}

	if g.normalize {
		embeddings.NormalizeL2(vec)
	}

	g.record(ctx, "success", time.Since(start))

	return vec, nil
}

// validate rejects vectors that are empty or carry non-finite values.
func validate(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding", apperrors.ErrMalformedResponse)
	}

	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", apperrors.ErrMalformedResponse, i)
		}
	}

	return nil
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, apperrors.ErrMalformedResponse):
		return "malformed"
	default:
		return "provider_error"
	}
}

func (g *Generator) logFailure(ctx context.Context, err error, text string) {
	attrs := []any{
		"provider", g.providerName,
		"model", g.model,
		"status", failureStatus(err),
		"text_length", len(text),
		"error", err,
	}

	if hint := modelHint(err); hint != "" {
		attrs = append(attrs, "hint", hint)
	}

	g.logger.WarnContext(ctx, "embedding: generation failed", attrs...)
}

// modelHint recognizes provider answers that usually mean the configured model cannot embed.
func modelHint(err error) string {
	var pe *apperrors.ProviderError
	if !errors.As(err, &pe) {
		return ""
	}

	msg := strings.ToLower(pe.Error())
	if pe.StatusCode == 404 || strings.Contains(msg, "does not support") || strings.Contains(msg, "not found") {
		return "check that the configured model exists and is an embedding model"
	}

	return ""
}

func (g *Generator) record(ctx context.Context, status string, d time.Duration) {
	if g.metrics != nil {
		g.metrics.RecordGeneration(ctx, status, d)
	}
}

func (g *Generator) recordCache(ctx context.Context, hit bool) {
	if g.cacheMetrics == nil {
		return
	}

	g.cacheMetrics.RecordLookup(ctx, hit)
}
