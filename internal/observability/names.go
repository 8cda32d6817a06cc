// Package observability provides OpenTelemetry metrics (Prometheus exporter) and log context
// for the matching engine.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameEmbeddingGenerations = "riskmatch_embedding_generations_total"
	MetricNameEmbeddingDuration    = "riskmatch_embedding_generation_duration_seconds"
	MetricNameJudgeCalls           = "riskmatch_judge_calls_total"
	MetricNameScoringStrategy      = "riskmatch_scoring_strategy_total"
	MetricNameRelevanceRequests    = "riskmatch_relevance_requests_total"
	MetricNameRelevanceSuggestions = "riskmatch_relevance_suggestions_total"
	MetricNameBackfillRecords      = "riskmatch_backfill_records_total"
	MetricNameEmbeddingQueueDepth  = "riskmatch_embedding_queue_depth"
	MetricNameQueryCacheLookups    = "riskmatch_query_cache_lookups_total"
)

// Attribute keys.
const (
	AttrStatus   = "status"
	AttrStage    = "stage"
	AttrStrategy = "strategy"
	AttrOutcome  = "outcome"
	AttrKind     = "kind"
	AttrResult   = "result"
)

// AllowedEmbeddingStatuses for riskmatch_embedding_generations_total and the duration histogram.
var AllowedEmbeddingStatuses = map[string]bool{
	"success":        true,
	"cache_hit":      true,
	"empty_input":    true,
	"provider_error": true,
	"malformed":      true,
	"timeout":        true,
	"rate_limited":   true,
}

// AllowedJudgeStages for riskmatch_judge_calls_total: the parse stage that produced the score,
// or why no score was produced.
var AllowedJudgeStages = map[string]bool{
	"strict":         true,
	"brace":          true,
	"digits":         true,
	"parse_failed":   true,
	"provider_error": true,
}

// AllowedStrategies for riskmatch_scoring_strategy_total.
var AllowedStrategies = map[string]bool{
	"vector":    true,
	"heuristic": true,
}

// AllowedRelevanceOutcomes for riskmatch_relevance_requests_total.
var AllowedRelevanceOutcomes = map[string]bool{
	"matched":           true,
	"no_matches":        true,
	"insufficient_data": true,
	"no_candidates":     true,
	"error":             true,
}

// AllowedBackfillStatuses for riskmatch_backfill_records_total.
var AllowedBackfillStatuses = map[string]bool{
	"succeeded": true,
	"failed":    true,
	"dry_run":   true,
}

// NormalizeReason returns value if in allowed, otherwise "other".
func NormalizeReason(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}

// NormalizeKind maps a record kind to a bounded set.
func NormalizeKind(kind string) string {
	switch kind {
	case "risk", "control":
		return kind
	default:
		return "unknown"
	}
}
