// Package relevance suggests existing risks for a supplier by ranking unlinked risks against
// the supplier's profile text.
package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/internal/similarity"
	"github.com/formbricks/riskmatch/internal/textnorm"
)

var tracer = otel.Tracer("github.com/formbricks/riskmatch/internal/relevance")

// Store reads suppliers, candidate risks and existing supplier/risk links.
type Store interface {
	GetSupplier(ctx context.Context, id uuid.UUID) (models.SupplierProfile, error)
	FindCandidates(ctx context.Context, filter models.CandidateFilter, limit int) ([]models.Record, error)
	FindLinkedRiskIDs(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
}

// Ranker scores candidates against query text, highest first (see similarity.Searcher).
type Ranker interface {
	RankAgainst(ctx context.Context, queryText string, candidates []models.Record, progress similarity.ProgressFunc) []models.ScoredCandidate
}

// Options tunes matching.
type Options struct {
	// Threshold is the minimum score (0-100) a suggestion needs.
	Threshold int
	// DefaultLimit applies when SuggestRisks is called with limit <= 0.
	DefaultLimit int
	// CandidateLimit caps how many active risks are loaded per request.
	CandidateLimit int
	// MinQueryLength is the minimum normalized profile length, in characters, worth matching on.
	MinQueryLength int
}

// DefaultOptions returns threshold 50, limit 15, 100 candidates and a 10 character floor.
func DefaultOptions() Options {
	return Options{
		Threshold:      50,
		DefaultLimit:   15,
		CandidateLimit: 100,
		MinQueryLength: 10,
	}
}

// MatcherParams configures a Matcher. Normalizer, Metrics and Logger may be nil.
type MatcherParams struct {
	Store      Store
	Ranker     Ranker
	Normalizer *textnorm.Normalizer
	Options    Options
	Metrics    observability.MatchingMetrics
	Logger     *slog.Logger
}

// Matcher suggests risks for suppliers.
type Matcher struct {
	store      Store
	ranker     Ranker
	normalizer *textnorm.Normalizer
	opts       Options
	metrics    observability.MatchingMetrics
	logger     *slog.Logger
}

// NewMatcher creates a Matcher. Non-positive limits fall back to DefaultOptions; a threshold
// outside 0-100 falls back too.
func NewMatcher(p MatcherParams) *Matcher {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	normalizer := p.Normalizer
	if normalizer == nil {
		normalizer = textnorm.New(textnorm.DefaultMaxLength)
	}

	defaults := DefaultOptions()
	opts := p.Options

	if opts.Threshold < 0 || opts.Threshold > 100 {
		opts.Threshold = defaults.Threshold
	}

	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaults.DefaultLimit
	}

	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = defaults.CandidateLimit
	}

	if opts.MinQueryLength < 0 {
		opts.MinQueryLength = defaults.MinQueryLength
	}

	return &Matcher{
		store:      p.Store,
		ranker:     p.Ranker,
		normalizer: normalizer,
		opts:       opts,
		metrics:    p.Metrics,
		logger:     logger,
	}
}

// SuggestRisks returns up to limit unlinked risks scoring at least the threshold against the
// supplier's profile, best first. It never fails: errors and panics are logged and produce an
// empty (non-nil) slice.
func (m *Matcher) SuggestRisks(ctx context.Context, supplierID uuid.UUID, limit int) (suggestions []models.RiskSuggestion) {
	ctx, span := tracer.Start(ctx, "relevance.SuggestRisks", trace.WithAttributes(
		attribute.String("supplier.id", supplierID.String()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "relevance: panic while matching", "supplier_id", supplierID, "panic", r)
			m.record(ctx, "error", 0)

			suggestions = []models.RiskSuggestion{}
		}
	}()

	if limit <= 0 {
		limit = m.opts.DefaultLimit
	}

	out, outcome, err := m.suggest(ctx, supplierID, limit)
	if err != nil {
		m.logger.ErrorContext(ctx, "relevance: matching failed", "supplier_id", supplierID, "error", err)
		m.record(ctx, "error", 0)

		return []models.RiskSuggestion{}
	}

	m.record(ctx, outcome, len(out))
	span.SetAttributes(attribute.String("relevance.outcome", outcome), attribute.Int("relevance.suggested", len(out)))

	return out
}

func (m *Matcher) suggest(ctx context.Context, supplierID uuid.UUID, limit int) ([]models.RiskSuggestion, string, error) {
	supplier, err := m.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, "", fmt.Errorf("get supplier: %w", err)
	}

	query := m.normalizer.CombineSupplierProfile(supplier)
	if textnorm.Length(query) < m.opts.MinQueryLength {
		m.logger.WarnContext(ctx, "relevance: insufficient supplier data",
			"supplier_id", supplierID,
			"query_length", textnorm.Length(query),
			"min_length", m.opts.MinQueryLength,
		)

		return []models.RiskSuggestion{}, "insufficient_data", nil
	}

	candidates, err := m.store.FindCandidates(ctx, models.CandidateFilter{Kind: models.RecordKindRisk}, m.opts.CandidateLimit)
	if err != nil {
		return nil, "", fmt.Errorf("find candidates: %w", err)
	}

	linkedIDs, err := m.store.FindLinkedRiskIDs(ctx, supplierID)
	if err != nil {
		return nil, "", fmt.Errorf("find linked risks: %w", err)
	}

	unlinked := excludeLinked(candidates, linkedIDs)
	if len(unlinked) == 0 {
		m.logger.DebugContext(ctx, "relevance: no unlinked candidates",
			"supplier_id", supplierID,
			"candidates", len(candidates),
			"linked", len(linkedIDs),
		)

		return []models.RiskSuggestion{}, "no_candidates", nil
	}

	ranked := m.ranker.RankAgainst(ctx, query, unlinked, nil)

	out := make([]models.RiskSuggestion, 0, min(limit, len(ranked)))

	for _, c := range ranked {
		if c.Result.Score < m.opts.Threshold {
			continue
		}

		out = append(out, models.RiskSuggestion{
			RiskID:        c.Record.ID,
			Title:         c.Record.Title,
			Score:         c.Result.Score,
			MatchedFields: c.Result.MatchedFields,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if len(out) > limit {
		out = out[:limit]
	}

	m.logger.InfoContext(ctx, "relevance: suggestions computed",
		"supplier_id", supplierID,
		"candidates", len(unlinked),
		"ranked", len(ranked),
		"suggested", len(out),
	)

	if len(out) == 0 {
		return out, "no_matches", nil
	}

	return out, "matched", nil
}

func excludeLinked(candidates []models.Record, linked []uuid.UUID) []models.Record {
	skip := make(map[uuid.UUID]struct{}, len(linked))
	for _, id := range linked {
		skip[id] = struct{}{}
	}

	out := make([]models.Record, 0, len(candidates))

	for _, c := range candidates {
		if _, ok := skip[c.ID]; !ok {
			out = append(out, c)
		}
	}

	return out
}

func (m *Matcher) record(ctx context.Context, outcome string, n int) {
	if m.metrics != nil {
		m.metrics.RecordRelevance(ctx, outcome, n)
	}
}
