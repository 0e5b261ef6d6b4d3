package semcache

import "strings"

// rerankCandidate is an approximate-hit candidate carried through the
// optional lexical re-ranking pass. vectorScore is the similarity the
// Vector Index already computed; secondaryScore is filled in by rerank.
// Rerank never overrides the similarity threshold — it only reorders
// candidates that already passed it.
type rerankCandidate struct {
	id             string
	normalizedText string
	vectorScore    float64
	secondaryScore float64
}

// rerankWeight balances the vector score each candidate already carries
// against the lexical overlap rerank adds, so a candidate with a
// slightly lower vector score but much closer wording can still win.
const rerankWeight = 0.5

// rerank scores every candidate's lexical similarity to prompt, combines
// it with the candidate's vectorScore, and returns whichever one has the
// highest combined score. It returns nil for an empty candidate list.
func rerank(prompt string, candidates []rerankCandidate) *rerankCandidate {
	if len(candidates) == 0 {
		return nil
	}

	bestIdx := 0
	bestCombined := -1.0
	for i := range candidates {
		candidates[i].secondaryScore = jaccardSimilarity(prompt, candidates[i].normalizedText)
		combined := rerankWeight*candidates[i].vectorScore + (1-rerankWeight)*candidates[i].secondaryScore
		if combined > bestCombined {
			bestCombined = combined
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}

// jaccardSimilarity computes word-set Jaccard similarity between two
// strings: the fraction of distinct words they share out of all the
// distinct words between them. Comparison is case- and
// whitespace-insensitive.
func jaccardSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	setA := wordSet(a)
	setB := wordSet(b)

	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}

	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0.0
	}
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
