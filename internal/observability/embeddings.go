package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding generation outcomes and latency.
type EmbeddingMetrics interface {
	RecordGeneration(ctx context.Context, status string, duration time.Duration)
}

type embeddingMetrics struct {
	generations metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	generations, err := meter.Int64Counter(
		MetricNameEmbeddingGenerations,
		metric.WithDescription("Embedding generation attempts by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding generations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding generation duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	return &embeddingMetrics{generations: generations, duration: duration}, nil
}

func (e *embeddingMetrics) RecordGeneration(ctx context.Context, status string, duration time.Duration) {
	status = NormalizeReason(status, AllowedEmbeddingStatuses)
	attrs := metric.WithAttributes(attribute.String(AttrStatus, status))
	e.generations.Add(ctx, 1, attrs)
	e.duration.Record(ctx, duration.Seconds(), attrs)
}
