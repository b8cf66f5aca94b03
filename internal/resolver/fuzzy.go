package resolver

import "strings"

// similarity computes the Sørensen–Dice coefficient over character bigrams
// of the two names, case-insensitively. It returns a value in [0, 1], where
// 1 means identical bigram sets. Names shorter than two characters only
// match exactly.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigramsA := bigrams(a)
	bigramsB := bigrams(b)

	overlap := 0
	for gram, countA := range bigramsA {
		if countB, ok := bigramsB[gram]; ok {
			if countA < countB {
				overlap += countA
			} else {
				overlap += countB
			}
		}
	}

	totalA := len(a) - 1
	totalB := len(b) - 1
	return 2 * float64(overlap) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	grams := make(map[string]int, len(s))
	for i := 0; i+2 <= len(s); i++ {
		grams[s[i:i+2]]++
	}
	return grams
}
