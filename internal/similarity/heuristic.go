package similarity

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/formbricks/riskmatch/internal/models"
)

// HeuristicScorer compares records without embeddings: exact and title shortcuts first,
// then the semantic judge with deterministic penalties.
type HeuristicScorer struct {
	thresholds Thresholds
	judge      *Judge
	logger     *slog.Logger
}

// NewHeuristicScorer creates a HeuristicScorer. judge may be nil, in which case every pair that
// reaches the judge step scores 0.
func NewHeuristicScorer(thresholds Thresholds, judge *Judge, logger *slog.Logger) *HeuristicScorer {
	if logger == nil {
		logger = slog.Default()
	}

	return &HeuristicScorer{thresholds: thresholds, judge: judge, logger: logger}
}

type foldedRecord struct {
	title, threat, description string
}

func fold(r models.Record) foldedRecord {
	return foldedRecord{
		title:       strings.ToLower(strings.TrimSpace(r.Title)),
		threat:      strings.ToLower(strings.TrimSpace(deref(r.ThreatDescription))),
		description: strings.ToLower(strings.TrimSpace(deref(r.Description))),
	}
}

// Score compares a and b. The result is always within [0, 100].
func (h *HeuristicScorer) Score(ctx context.Context, a, b models.Record) models.SimilarityResult {
	t := h.thresholds
	fa, fb := fold(a), fold(b)

	if fa.title != "" && fa == fb {
		fields := []string{models.FieldTitle}
		if fa.threat != "" {
			fields = append(fields, models.FieldThreatDescription)
		}

		if fa.description != "" {
			fields = append(fields, models.FieldDescription)
		}

		return models.SimilarityResult{Score: t.ExactScore, MatchedFields: fields}
	}

	if fa.title != "" && fa.title == fb.title {
		descSim := jaccard(fa.description, fb.description, t.JaccardMinTokenLen)
		threatSim := jaccard(fa.threat, fb.threat, t.JaccardMinTokenLen)

		switch {
		case descSim > t.JaccardStrong && threatSim > t.JaccardStrong:
			return models.SimilarityResult{
				Score:         t.TitleStrongScore,
				MatchedFields: []string{models.FieldTitle, models.FieldThreatDescription, models.FieldDescription},
			}
		case descSim > t.JaccardWeak || threatSim > t.JaccardWeak:
			return models.SimilarityResult{Score: t.TitleWeakScore, MatchedFields: []string{models.FieldTitle}}
		default:
			return models.SimilarityResult{Score: t.TitleOnlyScore, MatchedFields: []string{models.FieldTitle}}
		}
	}

	verdict, err := h.judge.Evaluate(ctx, a, b)
	if err != nil {
		if isJudgeUnavailable(err) {
			h.logger.ErrorContext(ctx, "heuristic: judge call failed", "error", err)
		} else {
			h.logger.WarnContext(ctx, "heuristic: judge reply unusable", "error", err)
		}

		return models.NoMatch()
	}

	return models.SimilarityResult{
		Score:         h.adjust(verdict.Score, fa, fb),
		MatchedFields: verdict.MatchedFields,
	}
}

// adjust applies the completeness and generic-title penalties, then clamps and rounds.
func (h *HeuristicScorer) adjust(score float64, a, b foldedRecord) int {
	t := h.thresholds

	if bareTitle(a) || bareTitle(b) {
		score = math.Max(score-float64(t.CompletenessPenalty), 0)
	}

	if score > float64(t.GenericTitleTrigger) && (h.genericTitle(a.title) || h.genericTitle(b.title)) {
		score = math.Max(score-float64(t.GenericTitlePenalty), float64(t.GenericTitleFloor))
	}

	return clampScore(score)
}

func bareTitle(c foldedRecord) bool {
	return c.title != "" && c.threat == "" && c.description == ""
}

// genericTitle reports whether a short title contains a generic term anywhere, so "attacks" and
// "cyberattack" count as "attack". title is already lowercased.
func (h *HeuristicScorer) genericTitle(title string) bool {
	w := words(title)
	if len(w) == 0 || len(w) > h.thresholds.GenericTitleMaxWords {
		return false
	}

	for _, term := range h.thresholds.GenericTerms {
		if term != "" && strings.Contains(title, term) {
			return true
		}
	}

	return false
}

// clampScore rounds to the nearest integer within [0, 100]. NaN scores 0.
func clampScore(score float64) int {
	if math.IsNaN(score) {
		return 0
	}

	return int(math.Round(math.Min(math.Max(score, 0), 100)))
}
