package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/internal/textnorm"
	"github.com/formbricks/riskmatch/pkg/embeddings"
	"github.com/formbricks/riskmatch/pkg/limiter"
)

// Defaults for SearcherParams.
const (
	DefaultBatchSize        = 50
	DefaultHeuristicCap     = 50
	DefaultEmbedConcurrency = 3
)

// Embedder produces embeddings; it never fails loudly (see embedding.Generator).
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, bool)
}

// ProgressFunc is called after each batch of candidates with the number done and the total.
type ProgressFunc func(done, total int)

// SearcherParams configures a Searcher. Limiter, Metrics and Logger may be nil.
type SearcherParams struct {
	Embedder   Embedder
	Normalizer *textnorm.Normalizer
	Heuristic  *HeuristicScorer
	// Limiter bounds concurrent candidate embedding calls. Shared with other callers to keep a
	// global bound on provider traffic.
	Limiter *limiter.Limiter
	// BatchSize is the number of candidates embedded between progress reports.
	BatchSize int
	// HeuristicCap is the maximum number of candidates scored on the heuristic path.
	HeuristicCap int
	Metrics      observability.MatchingMetrics
	Logger       *slog.Logger
}

// Searcher scores pairs and ranks candidates against free-text queries.
type Searcher struct {
	embedder     Embedder
	normalizer   *textnorm.Normalizer
	heuristic    *HeuristicScorer
	limiter      *limiter.Limiter
	batchSize    int
	heuristicCap int
	chain        *Chain
	metrics      observability.MatchingMetrics
	logger       *slog.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(p SearcherParams) *Searcher {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Searcher{
		embedder:     p.Embedder,
		normalizer:   p.Normalizer,
		heuristic:    p.Heuristic,
		limiter:      p.Limiter,
		batchSize:    p.BatchSize,
		heuristicCap: p.HeuristicCap,
		metrics:      p.Metrics,
		logger:       logger,
	}

	if s.normalizer == nil {
		s.normalizer = textnorm.New(textnorm.DefaultMaxLength)
	}

	if s.heuristic == nil {
		s.heuristic = NewHeuristicScorer(DefaultThresholds(), nil, logger)
	}

	if s.limiter == nil {
		s.limiter = limiter.New(DefaultEmbedConcurrency)
	}

	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}

	if s.heuristicCap <= 0 {
		s.heuristicCap = DefaultHeuristicCap
	}

	s.chain = NewChain(p.Metrics, VectorStrategy{Searcher: s}, HeuristicStrategy{Scorer: s.heuristic})

	return s
}

// ScorePair compares a and b by embeddings only, preferring stored embeddings. It returns
// ok=false when an embedding cannot be produced, and an error only when the two embeddings
// have different dimensions.
func (s *Searcher) ScorePair(ctx context.Context, a, b models.Record) (models.SimilarityResult, bool, error) {
	va, ok := s.recordEmbedding(ctx, a)
	if !ok {
		return models.NoMatch(), false, nil
	}

	vb, ok := s.recordEmbedding(ctx, b)
	if !ok {
		return models.NoMatch(), false, nil
	}

	cos, err := embeddings.Cosine(va, vb)
	if err != nil {
		return models.NoMatch(), false, fmt.Errorf("score pair %s/%s: %w", a.ID, b.ID, err)
	}

	fields := []string{}
	if titleMatches(b.Title, s.normalizer.CombineRecord(a)) || titleMatches(a.Title, s.normalizer.CombineRecord(b)) {
		fields = append(fields, models.FieldTitle)
	}

	return models.SimilarityResult{Score: roundScore(cos), MatchedFields: fields}, true, nil
}

// Compare scores a and b by embeddings, falling back to the heuristic scorer. It never fails.
func (s *Searcher) Compare(ctx context.Context, a, b models.Record) models.SimilarityResult {
	out := s.chain.Score(ctx, a, b)
	if !out.OK {
		return models.NoMatch()
	}

	return out.Result
}

// RankAgainst scores every candidate against queryText and returns them sorted by score,
// highest first. No threshold is applied. When the query (or every candidate) cannot be
// embedded, the first HeuristicCap candidates are scored heuristically instead.
// progress may be nil.
func (s *Searcher) RankAgainst(ctx context.Context, queryText string, candidates []models.Record, progress ProgressFunc) []models.ScoredCandidate {
	if len(candidates) == 0 {
		return []models.ScoredCandidate{}
	}

	queryVec, ok := s.embedder.Generate(ctx, queryText)
	if !ok {
		s.logger.WarnContext(ctx, "similarity: query embedding unavailable, using heuristic ranking",
			"candidates", len(candidates))

		return s.rankHeuristic(ctx, queryText, candidates, progress)
	}

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	failed := 0

	for start := 0; start < len(candidates); start += s.batchSize {
		end := min(start+s.batchSize, len(candidates))

		for _, res := range s.embedBatch(ctx, candidates[start:end]) {
			if res.err != nil {
				failed++

				s.logger.WarnContext(ctx, "similarity: skipping candidate", "candidate_id", res.record.ID, "error", res.err)

				continue
			}

			cos, err := embeddings.Cosine(queryVec, res.vector)
			if err != nil {
				failed++

				s.logger.ErrorContext(ctx, "similarity: skipping candidate", "candidate_id", res.record.ID, "error", err)

				continue
			}

			fields := []string{}
			if titleMatches(res.record.Title, queryText) {
				fields = append(fields, models.FieldTitle)
			}

			scored = append(scored, models.ScoredCandidate{
				Record: res.record,
				Result: models.SimilarityResult{Score: roundScore(cos), MatchedFields: fields},
			})
		}

		if progress != nil {
			progress(end, len(candidates))
		}
	}

	if len(scored) == 0 {
		s.logger.WarnContext(ctx, "similarity: no candidate could be embedded, using heuristic ranking",
			"candidates", len(candidates), "failed", failed)

		return s.rankHeuristic(ctx, queryText, candidates, progress)
	}

	if s.metrics != nil {
		for range scored {
			s.metrics.RecordStrategy(ctx, VectorStrategy{}.Name())
		}
	}

	sortByScore(scored)

	return scored
}

type embedResult struct {
	record models.Record
	vector []float32
	err    error
}

var errEmbeddingUnavailable = errors.New("embedding unavailable")

// embedBatch embeds the batch concurrently under the shared limiter. Results come back in
// completion order; stored embeddings are used as-is.
func (s *Searcher) embedBatch(ctx context.Context, batch []models.Record) []embedResult {
	results := make(chan embedResult, len(batch))

	for _, rec := range batch {
		if rec.HasEmbedding() {
			results <- embedResult{record: rec, vector: rec.Embedding}

			continue
		}

		go func() {
			var vec []float32

			err := s.limiter.Execute(ctx, func(taskCtx context.Context) error {
				v, ok := s.embedder.Generate(taskCtx, s.normalizer.CombineRecord(rec))
				if !ok {
					return errEmbeddingUnavailable
				}

				vec = v

				return nil
			})

			results <- embedResult{record: rec, vector: vec, err: err}
		}()
	}

	out := make([]embedResult, 0, len(batch))
	for range batch {
		out = append(out, <-results)
	}

	return out
}

// rankHeuristic scores up to heuristicCap candidates in order. The query becomes a record with
// the query text as its description so the bare-title penalty does not apply to it.
func (s *Searcher) rankHeuristic(ctx context.Context, queryText string, candidates []models.Record, progress ProgressFunc) []models.ScoredCandidate {
	if len(candidates) > s.heuristicCap {
		s.logger.WarnContext(ctx, "similarity: heuristic ranking truncated candidates",
			"candidates", len(candidates), "cap", s.heuristicCap)

		candidates = candidates[:s.heuristicCap]
	}

	query := models.Record{Description: &queryText}
	scored := make([]models.ScoredCandidate, 0, len(candidates))

	for i, c := range candidates {
		result := s.heuristic.Score(ctx, query, c)
		if titleMatches(c.Title, queryText) && !slices.Contains(result.MatchedFields, models.FieldTitle) {
			result.MatchedFields = append([]string{models.FieldTitle}, result.MatchedFields...)
		}

		scored = append(scored, models.ScoredCandidate{Record: c, Result: result})

		if s.metrics != nil {
			s.metrics.RecordStrategy(ctx, HeuristicStrategy{}.Name())
		}

		if progress != nil && ((i+1)%s.batchSize == 0 || i == len(candidates)-1) {
			progress(i+1, len(candidates))
		}
	}

	sortByScore(scored)

	return scored
}

func (s *Searcher) recordEmbedding(ctx context.Context, r models.Record) ([]float32, bool) {
	if r.HasEmbedding() {
		return r.Embedding, true
	}

	return s.embedder.Generate(ctx, s.normalizer.CombineRecord(r))
}

// titleMatches reports whether the non-blank title occurs in text, ignoring case.
func titleMatches(title, text string) bool {
	t := strings.ToLower(strings.TrimSpace(title))

	return t != "" && strings.Contains(strings.ToLower(text), t)
}

func roundScore(cos float64) int {
	return int(math.Round(embeddings.ToScore(cos)))
}

func sortByScore(scored []models.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.Score > scored[j].Result.Score
	})
}
