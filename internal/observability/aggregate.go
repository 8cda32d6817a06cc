package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric collectors. When metrics are disabled the pointer is nil; callers
// pass nil interfaces down and components skip recording.
type Metrics struct {
	Embeddings EmbeddingMetrics
	Matching   MatchingMetrics
	Backfill   BackfillMetrics
	Cache      CacheMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	embeddings, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	matching, err := NewMatchingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("matching metrics: %w", err)
	}

	backfill, err := NewBackfillMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("backfill metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	return &Metrics{
		Embeddings: embeddings,
		Matching:   matching,
		Backfill:   backfill,
		Cache:      cache,
	}, nil
}
