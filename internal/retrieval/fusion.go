package retrieval

import (
	"sort"

	"aether/internal/symbol"
)

// parseSymbolIDOrSkip parses a hex symbol_id string, returning an error a
// caller can treat as "skip this id" (e.g. a note or test-intent id that
// ended up in a symbol-only ranked list by construction error).
func parseSymbolIDOrSkip(s string) (symbol.SymbolID, error) {
	return symbol.ParseSymbolID(s)
}

// rrfK is reciprocal-rank fusion's constant, per spec.
const rrfK = 60

// rankedList is one ranked source feeding into fuseRRF: IDs in descending
// relevance order, most relevant first (rank 1).
type rankedList []string

// fuseRRF combines any number of ranked ID lists into a single fused
// ranking via reciprocal-rank fusion: score(id) = Σ 1/(k + rank_i) over
// every list id appears in (rank_i is 1-based; an id absent from a list
// contributes nothing from it). Returns the fused score per ID, unordered;
// sortByScoreDesc turns it into a ranking.
func fuseRRF(lists ...rankedList) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for i, id := range list {
			rank := i + 1
			scores[id] += 1.0 / float64(rrfK+rank)
		}
	}
	return scores
}

// sortByScoreDesc returns ids sorted by scores[id] descending, ties broken
// by id ascending.
func sortByScoreDesc(scores map[string]float64) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
