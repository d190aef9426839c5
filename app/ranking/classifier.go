package ranking

// DefaultSignificantChange is the position delta treated as a significant
// movement when no threshold is configured.
const DefaultSignificantChange = 5

// Classify assigns at most one category to a position change. Band
// crossings take precedence over magnitude: a jump from 15 to 2 is top3,
// never significant_improvement. Evaluation order is fixed and the first
// matching predicate wins.
func Classify(position int, previous *int, threshold int) ChangeCategory {
	if previous == nil {
		return CategoryNone
	}
	if threshold <= 0 {
		threshold = DefaultSignificantChange
	}

	prev := *previous

	switch {
	case position <= 3 && prev > 3:
		return CategoryTop3
	case position <= 10 && prev > 10:
		return CategoryFirstPage
	case position > 10 && prev <= 10:
		return CategoryDroppedOut
	case prev-position >= threshold:
		return CategorySignificantImprovement
	case position-prev >= threshold:
		return CategorySignificantDecline
	default:
		return CategoryNone
	}
}
