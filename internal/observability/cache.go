package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Values of the result attribute on the query cache counter.
const (
	cacheResultHit  = "hit"
	cacheResultMiss = "miss"
)

// CacheMetrics counts query embedding cache lookups.
type CacheMetrics interface {
	RecordLookup(ctx context.Context, hit bool)
}

type cacheMetrics struct {
	lookups metric.Int64Counter
	hit     metric.MeasurementOption
	miss    metric.MeasurementOption
}

// NewCacheMetrics creates CacheMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	lookups, err := meter.Int64Counter(
		MetricNameQueryCacheLookups,
		metric.WithDescription("Query embedding cache lookups. Label result: hit, miss. "+
			"A miss means the provider was called."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query cache lookups counter: %w", err)
	}

	return &cacheMetrics{
		lookups: lookups,
		hit:     metric.WithAttributes(attribute.String(AttrResult, cacheResultHit)),
		miss:    metric.WithAttributes(attribute.String(AttrResult, cacheResultMiss)),
	}, nil
}

func (c *cacheMetrics) RecordLookup(ctx context.Context, hit bool) {
	if hit {
		c.lookups.Add(ctx, 1, c.hit)

		return
	}

	c.lookups.Add(ctx, 1, c.miss)
}
