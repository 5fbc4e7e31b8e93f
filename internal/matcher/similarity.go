package matcher

import "strings"

// bigrams returns the multiset of adjacent character pairs in s,
// case-folded with whitespace collapsed.
func bigrams(s string) map[string]int {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), " "))
	grams := make(map[string]int)
	for i := 0; i+1 < len(normalized); i++ {
		grams[normalized[i:i+2]]++
	}
	return grams
}

// DiceCoefficient computes the Sørensen–Dice similarity of the two
// strings over character bigrams, in [0, 1]. Identical strings score 1;
// strings sharing no bigram score 0.
func DiceCoefficient(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}

	gramsA := bigrams(a)
	gramsB := bigrams(b)
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0.0
	}

	totalA, totalB, overlap := 0, 0, 0
	for _, n := range gramsA {
		totalA += n
	}
	for g, n := range gramsB {
		totalB += n
		if m, ok := gramsA[g]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}

	return 2.0 * float64(overlap) / float64(totalA+totalB)
}

// bestFuzzyMatch returns the canonical name with the highest Dice score
// against the candidate, with its score.
func bestFuzzyMatch(candidate string, names []string) (string, float64) {
	bestName, bestScore := "", 0.0
	for _, name := range names {
		if score := DiceCoefficient(candidate, name); score > bestScore {
			bestName, bestScore = name, score
		}
	}
	return bestName, bestScore
}
