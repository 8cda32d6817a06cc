// Package similarity scores pairs of risk records and ranks candidates against a query.
//
// Scoring is an ordered chain: vector similarity over embeddings first, then a heuristic
// scorer (exact and title shortcuts, then an external semantic judge).
package similarity

// Thresholds holds the tuning constants of the heuristic scorer. The values were chosen
// empirically; they are configurable so deployments can adjust them.
type Thresholds struct {
	// ExactScore is returned when title, threat and description all match.
	ExactScore int
	// TitleStrongScore is returned for equal titles when both Jaccard similarities exceed JaccardStrong.
	TitleStrongScore int
	// TitleWeakScore is returned for equal titles when either Jaccard similarity exceeds JaccardWeak.
	TitleWeakScore int
	// TitleOnlyScore is returned for equal titles otherwise.
	TitleOnlyScore int

	JaccardStrong float64
	JaccardWeak   float64
	// JaccardMinTokenLen is the minimum token length (in runes) counted by Jaccard.
	JaccardMinTokenLen int

	// CompletenessPenalty is subtracted when either record is a bare title.
	CompletenessPenalty int
	// GenericTitlePenalty is subtracted from scores above GenericTitleTrigger when either
	// title is short and generic, never dropping below GenericTitleFloor.
	GenericTitlePenalty  int
	GenericTitleTrigger  int
	GenericTitleFloor    int
	GenericTitleMaxWords int
	GenericTerms         []string
}

// DefaultThresholds returns the standard tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExactScore:           100,
		TitleStrongScore:     95,
		TitleWeakScore:       85,
		TitleOnlyScore:       70,
		JaccardStrong:        0.8,
		JaccardWeak:          0.7,
		JaccardMinTokenLen:   3,
		CompletenessPenalty:  15,
		GenericTitlePenalty:  10,
		GenericTitleTrigger:  70,
		GenericTitleFloor:    50,
		GenericTitleMaxWords: 3,
		GenericTerms:         []string{"risk", "security", "threat", "vulnerability", "breach", "attack"},
	}
}
