package chunithm

// GroupByCredit splits newest-first recent scores into credits. a credit
// ends at its track 1, the oldest credit may be cut short by the playlog
// limit and is returned as it is.
func GroupByCredit(scores []RecentScore) [][]RecentScore {
	var credits [][]RecentScore
	var current []RecentScore
	for _, score := range scores {
		current = append(current, score)
		if score.Track == 1 {
			credits = append(credits, current)
			current = nil
		}
	}
	if len(current) > 0 {
		credits = append(credits, current)
	}
	return credits
}
