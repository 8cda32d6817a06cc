package models

// Field names reported in SimilarityResult.MatchedFields.
const (
	FieldTitle             = "title"
	FieldThreatDescription = "threatDescription"
	FieldDescription       = "description"
)

// SimilarityResult is the outcome of comparing two records. Score is always in [0, 100].
type SimilarityResult struct {
	Score         int      `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

// NoMatch returns a zero score with an empty (non-nil) field list.
func NoMatch() SimilarityResult {
	return SimilarityResult{Score: 0, MatchedFields: []string{}}
}

// ScoredCandidate pairs a candidate record with its score against a query.
type ScoredCandidate struct {
	Record Record           `json:"record"`
	Result SimilarityResult `json:"result"`
}
