package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/pkg/cache"
)

type mockProvider struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, input string) ([]float32, error)
}

func (m *mockProvider) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	return m.fn(ctx, input)
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

type recordingMetrics struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recordingMetrics) RecordGeneration(_ context.Context, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, status)
}

func constant(vec ...float32) func(context.Context, string) ([]float32, error) {
	return func(context.Context, string) ([]float32, error) {
		out := make([]float32, len(vec))
		copy(out, vec)

		return out, nil
	}
}

func TestGenerator_Generate_Success(t *testing.T) {
	provider := &mockProvider{fn: constant(1, 2, 3)}
	metrics := &recordingMetrics{}
	g := NewGenerator(Params{Provider: provider, Metrics: metrics})

	vec, ok := g.Generate(context.Background(), "  phishing attack \n")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, []string{"phishing attack"}, provider.calls)
	assert.Equal(t, []string{"success"}, metrics.statuses)
}

func TestGenerator_Generate_BlankInput(t *testing.T) {
	provider := &mockProvider{fn: constant(1)}
	g := NewGenerator(Params{Provider: provider})

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, ok := g.Generate(context.Background(), text)
		assert.False(t, ok)
		assert.Nil(t, vec)
	}

	assert.Equal(t, 0, provider.callCount())
}

func TestGenerator_Generate_Disabled(t *testing.T) {
	g := NewGenerator(Params{})

	assert.False(t, g.Enabled())

	_, ok := g.Generate(context.Background(), "text")
	assert.False(t, ok)
}

func TestGenerator_Generate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(context.Context, string) ([]float32, error)
		status string
	}{
		{
			name: "transport failure",
			fn: func(context.Context, string) ([]float32, error) {
				return nil, apperrors.NewProviderError("ollama", "embedding", 0, errors.New("connection refused"))
			},
			status: "provider_error",
		},
		{
			name: "malformed body",
			fn: func(context.Context, string) ([]float32, error) {
				return nil, apperrors.ErrMalformedResponse
			},
			status: "malformed",
		},
		{
			name:   "empty vector",
			fn:     constant(),
			status: "malformed",
		},
		{
			name:   "non-finite value",
			fn:     constant(1, float32(math.NaN())),
			status: "malformed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			g := NewGenerator(Params{Provider: &mockProvider{fn: tt.fn}, Metrics: metrics})

			vec, ok := g.Generate(context.Background(), "text")
			assert.False(t, ok)
			assert.Nil(t, vec)
			assert.Equal(t, []string{tt.status}, metrics.statuses)
		})
	}
}

func TestGenerator_Generate_Timeout(t *testing.T) {
	provider := &mockProvider{fn: func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()

		return nil, errors.New("request aborted")
	}}
	metrics := &recordingMetrics{}
	g := NewGenerator(Params{Provider: provider, Timeout: 20 * time.Millisecond, Metrics: metrics})

	start := time.Now()
	_, ok := g.Generate(context.Background(), "text")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"timeout"}, metrics.statuses)
}

func TestGenerator_Generate_RateLimitWaitCancelled(t *testing.T) {
	provider := &mockProvider{fn: constant(1)}
	metrics := &recordingMetrics{}
	g := NewGenerator(Params{Provider: provider, RateLimit: 0.1, Metrics: metrics})

	_, ok := g.Generate(context.Background(), "first")
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok = g.Generate(ctx, "second")
	assert.False(t, ok)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, []string{"success", "rate_limited"}, metrics.statuses)
}

func TestGenerator_Generate_Normalize(t *testing.T) {
	g := NewGenerator(Params{Provider: &mockProvider{fn: constant(3, 4)}, Normalize: true})

	vec, ok := g.Generate(context.Background(), "text")
	require.True(t, ok)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
}

func TestGenerator_Generate_Cache(t *testing.T) {
	c, err := cache.New[[]float32](8, time.Minute)
	require.NoError(t, err)

	provider := &mockProvider{fn: constant(1, 0)}
	metrics := &recordingMetrics{}
	g := NewGenerator(Params{Provider: provider, Cache: c, Metrics: metrics})

	for range 3 {
		vec, ok := g.Generate(context.Background(), " query ")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 0}, vec)
	}

	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, []string{"success", "cache_hit", "cache_hit"}, metrics.statuses)
}

func TestGenerator_Generate_CacheSkipsFailures(t *testing.T) {
	c, err := cache.New[[]float32](8, time.Minute)
	require.NoError(t, err)

	fail := true
	provider := &mockProvider{fn: func(context.Context, string) ([]float32, error) {
		if fail {
			return nil, apperrors.ErrMalformedResponse
		}

		return []float32{1}, nil
	}}
	g := NewGenerator(Params{Provider: provider, Cache: c})

	_, ok := g.Generate(context.Background(), "query")
	assert.False(t, ok)

	fail = false

	_, ok = g.Generate(context.Background(), "query")
	assert.True(t, ok)
	assert.Equal(t, 2, provider.callCount())
}

func TestModelHint(t *testing.T) {
	assert.NotEmpty(t, modelHint(apperrors.NewProviderError("ollama", "embedding", 400, errors.New(`"llama3" does not support embeddings`))))
	assert.NotEmpty(t, modelHint(apperrors.NewProviderError("openai", "embedding", 404, errors.New("nope"))))
	assert.Empty(t, modelHint(apperrors.NewProviderError("openai", "embedding", 500, errors.New("overloaded"))))
	assert.Empty(t, modelHint(errors.New("plain")))
}
