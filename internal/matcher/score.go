package matcher

// Scoring constants. The base-confidence threshold cuts noise matches; the
// penalty tiers discount candidates whose evidence comes mostly from the
// same hash value recurring in the query.
const (
	confidenceThreshold = 0.1

	heavyDupRatio   = 2.0
	heavyDupPenalty = 0.8
	lightDupRatio   = 1.5
	lightDupPenalty = 0.9
)

// score computes the confidence for one candidate.
//
//	baseConfidence = uniqueMatches / totalQueryHashes
//	matchRatio     = matchCount / uniqueMatches
//
// Candidates below the threshold score zero and are filtered by the caller.
func score(matchCount, uniqueMatches, totalQueryHashes int) float64 {
	if uniqueMatches == 0 || totalQueryHashes == 0 {
		return 0
	}
	base := float64(uniqueMatches) / float64(totalQueryHashes)
	if base < confidenceThreshold {
		return 0
	}
	ratio := float64(matchCount) / float64(uniqueMatches)
	switch {
	case ratio > heavyDupRatio:
		return base * heavyDupPenalty
	case ratio > lightDupRatio:
		return base * lightDupPenalty
	default:
		return base
	}
}
