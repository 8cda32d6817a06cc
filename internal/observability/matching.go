package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MatchingMetrics records similarity scoring and relevance matching activity.
type MatchingMetrics interface {
	RecordJudgeCall(ctx context.Context, stage string)
	RecordStrategy(ctx context.Context, strategy string)
	RecordRelevance(ctx context.Context, outcome string, suggestions int)
}

type matchingMetrics struct {
	judgeCalls  metric.Int64Counter
	strategies  metric.Int64Counter
	requests    metric.Int64Counter
	suggestions metric.Int64Counter
}

// NewMatchingMetrics creates MatchingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewMatchingMetrics(meter metric.Meter) (MatchingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	judgeCalls, err := meter.Int64Counter(
		MetricNameJudgeCalls,
		metric.WithDescription("Semantic judge calls by parse stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("create judge calls counter: %w", err)
	}

	strategies, err := meter.Int64Counter(
		MetricNameScoringStrategy,
		metric.WithDescription("Pair comparisons by the scoring strategy that produced the result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create scoring strategy counter: %w", err)
	}

	requests, err := meter.Int64Counter(
		MetricNameRelevanceRequests,
		metric.WithDescription("Supplier relevance matching requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create relevance requests counter: %w", err)
	}

	suggestions, err := meter.Int64Counter(
		MetricNameRelevanceSuggestions,
		metric.WithDescription("Risks suggested by relevance matching"),
	)
	if err != nil {
		return nil, fmt.Errorf("create relevance suggestions counter: %w", err)
	}

	return &matchingMetrics{
		judgeCalls:  judgeCalls,
		strategies:  strategies,
		requests:    requests,
		suggestions: suggestions,
	}, nil
}

func (m *matchingMetrics) RecordJudgeCall(ctx context.Context, stage string) {
	stage = NormalizeReason(stage, AllowedJudgeStages)
	m.judgeCalls.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}

func (m *matchingMetrics) RecordStrategy(ctx context.Context, strategy string) {
	strategy = NormalizeReason(strategy, AllowedStrategies)
	m.strategies.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStrategy, strategy)))
}

func (m *matchingMetrics) RecordRelevance(ctx context.Context, outcome string, suggestions int) {
	outcome = NormalizeReason(outcome, AllowedRelevanceOutcomes)
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))

	if suggestions > 0 {
		m.suggestions.Add(ctx, int64(suggestions))
	}
}
