package similarity

import (
	"context"

	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/observability"
)

// Outcome is the result of one scoring strategy: a result when OK, nothing otherwise.
type Outcome struct {
	Result models.SimilarityResult
	OK     bool
}

// Success wraps a result produced by a strategy.
func Success(r models.SimilarityResult) Outcome {
	return Outcome{Result: r, OK: true}
}

// Unavailable reports that a strategy could not score the pair.
func Unavailable() Outcome {
	return Outcome{Result: models.NoMatch()}
}

// Strategy scores a pair of records or reports itself unavailable.
type Strategy interface {
	Name() string
	Score(ctx context.Context, a, b models.Record) Outcome
}

// Chain evaluates strategies in order and returns the first available outcome.
type Chain struct {
	strategies []Strategy
	metrics    observability.MatchingMetrics
}

// NewChain creates a Chain. metrics may be nil.
func NewChain(metrics observability.MatchingMetrics, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, metrics: metrics}
}

// Score returns the first OK outcome, or Unavailable when every strategy declined.
func (c *Chain) Score(ctx context.Context, a, b models.Record) Outcome {
	for _, s := range c.strategies {
		out := s.Score(ctx, a, b)
		if !out.OK {
			continue
		}

		if c.metrics != nil {
			c.metrics.RecordStrategy(ctx, s.Name())
		}

		return out
	}

	return Unavailable()
}

// HeuristicStrategy adapts HeuristicScorer to Strategy. It is always available.
type HeuristicStrategy struct {
	Scorer *HeuristicScorer
}

// Name implements Strategy.
func (HeuristicStrategy) Name() string { return "heuristic" }

// Score implements Strategy.
func (h HeuristicStrategy) Score(ctx context.Context, a, b models.Record) Outcome {
	return Success(h.Scorer.Score(ctx, a, b))
}

// VectorStrategy scores by cosine similarity of embeddings. It is unavailable when either
// embedding cannot be produced or the dimensions disagree.
type VectorStrategy struct {
	Searcher *Searcher
}

// Name implements Strategy.
func (VectorStrategy) Name() string { return "vector" }

// Score implements Strategy.
func (v VectorStrategy) Score(ctx context.Context, a, b models.Record) Outcome {
	result, ok, err := v.Searcher.ScorePair(ctx, a, b)
	if err != nil {
		v.Searcher.logger.ErrorContext(ctx, "similarity: vector comparison failed, falling back",
			"a_id", a.ID,
			"b_id", b.ID,
			"error", err,
		)

		return Unavailable()
	}

	if !ok {
		return Unavailable()
	}

	return Success(result)
}
