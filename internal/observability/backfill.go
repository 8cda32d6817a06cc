package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BackfillMetrics records per-record backfill outcomes and the depth of the embedding refresh queue.
type BackfillMetrics interface {
	RecordRecords(ctx context.Context, kind, status string, count int)
	SetQueueDepth(ctx context.Context, count int)
}

type backfillMetrics struct {
	records    metric.Int64Counter
	queueDepth metric.Int64Gauge
}

// NewBackfillMetrics creates BackfillMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewBackfillMetrics(meter metric.Meter) (BackfillMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	records, err := meter.Int64Counter(
		MetricNameBackfillRecords,
		metric.WithDescription("Records processed by the embedding backfill, by kind and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backfill records counter: %w", err)
	}

	queueDepth, err := meter.Int64Gauge(
		MetricNameEmbeddingQueueDepth,
		metric.WithDescription("Embedding refresh jobs waiting in the River queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding queue depth gauge: %w", err)
	}

	return &backfillMetrics{records: records, queueDepth: queueDepth}, nil
}

func (b *backfillMetrics) RecordRecords(ctx context.Context, kind, status string, count int) {
	if count <= 0 {
		return
	}

	b.records.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrKind, NormalizeKind(kind)),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedBackfillStatuses)),
	))
}

func (b *backfillMetrics) SetQueueDepth(ctx context.Context, count int) {
	b.queueDepth.Record(ctx, int64(count))
}
