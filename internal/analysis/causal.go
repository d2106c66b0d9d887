package analysis

import (
	"context"
	"sort"
	"time"

	"aether/internal/relstore"
	"aether/internal/sir"
	"aether/internal/symbol"
)

// SIRFieldDiff is a before/after field-level comparison of one upstream
// symbol's SIR, the qualitative half of a CausalLink.
type SIRFieldDiff struct {
	IntentChanged       bool
	EdgeCasesAdded      []string
	EdgeCasesRemoved    []string
	DependenciesAdded   []string
	DependenciesRemoved []string
}

// CausalLink is one upstream symbol ranked by how likely its recent SIR
// change explains a downstream target's current behavior.
type CausalLink struct {
	SymbolID        symbol.SymbolID
	FilePath        string
	Depth           int
	Path            []symbol.SymbolID // target -> ... -> this symbol
	ChangeMagnitude float64
	CouplingScore   float64
	RecencyWeight   float64
	CausalScore     float64
	ChangedAt       time.Time
	Diff            SIRFieldDiff
}

// CausalChain recursively expands target's upstream dependencies (what it
// depends on, transitively) up to maxDepth, evaluates every upstream symbol
// that changed within lookback, and returns the top limit ranked
// descending by causal_score.
func (a *Analyzer) CausalChain(ctx context.Context, target symbol.SymbolID, maxDepth int, lookback time.Duration, limit int) ([]CausalLink, error) {
	depth := maxDepth
	if depth < 1 {
		depth = 1
	}
	if depth > 10 {
		depth = 10
	}

	targetSym, err := a.relStore.GetSymbol(target)
	if err != nil {
		return nil, err
	}
	targetFile := ""
	if targetSym != nil {
		targetFile = targetSym.FilePath
	}

	cutoff := time.Now().Add(-lookback)

	type frontierEntry struct {
		id   symbol.SymbolID
		path []symbol.SymbolID
	}

	visited := map[symbol.SymbolID]bool{target: true}
	frontier := []frontierEntry{{id: target, path: []symbol.SymbolID{target}}}

	var links []CausalLink
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []frontierEntry
		for _, fe := range frontier {
			deps, err := a.graphStore.Dependencies(fe.id)
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				if visited[dep.SymbolID] {
					continue // cycle: never re-expand a node already on this traversal
				}
				visited[dep.SymbolID] = true
				path := append(append([]symbol.SymbolID(nil), fe.path...), dep.SymbolID)
				next = append(next, frontierEntry{id: dep.SymbolID, path: path})

				link, ok, err := a.evaluateCausalLink(ctx, dep.SymbolID, dep.FilePath, targetFile, d, path, cutoff)
				if err != nil {
					return nil, err
				}
				if ok {
					links = append(links, link)
				}
			}
		}
		frontier = next
	}

	sort.Slice(links, func(i, j int) bool { return links[i].CausalScore > links[j].CausalScore })
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

// evaluateCausalLink scores one upstream symbol, returning ok=false if it
// has no SIR history entry inside the lookback window (no change to
// attribute causality to).
func (a *Analyzer) evaluateCausalLink(ctx context.Context, upstreamID symbol.SymbolID, upstreamFile, targetFile string, depth int, path []symbol.SymbolID, cutoff time.Time) (CausalLink, bool, error) {
	history, err := a.relStore.SIRHistoryForSymbol(upstreamID)
	if err != nil {
		return CausalLink{}, false, err
	}

	var inWindow []relstore.SIRHistoryEntry
	for _, h := range history {
		if !h.CreatedAt.Before(cutoff) {
			inWindow = append(inWindow, h)
		}
	}
	if len(inWindow) == 0 {
		return CausalLink{}, false, nil
	}

	beforeIdx := len(history) - len(inWindow) - 1
	before := inWindow[0]
	if beforeIdx >= 0 {
		before = history[beforeIdx]
	}

	leaf, err := a.relStore.GetLeafSIR(upstreamID)
	if err != nil {
		return CausalLink{}, false, err
	}
	after := inWindow[len(inWindow)-1]
	afterSIR := after.SIR
	if leaf != nil {
		afterSIR = leaf.SIR
	}

	beforeVec, _ := a.embedText(ctx, before.SIR.Intent)
	afterVec, _ := a.embedText(ctx, afterSIR.Intent)
	magnitude := 0.0
	if beforeVec != nil && afterVec != nil {
		magnitude = 1 - cosineSimilarity(beforeVec, afterVec)
	}

	daysSince := time.Since(after.CreatedAt).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}
	recencyWeight := 1 / (1 + daysSince)

	coupling := 0.5 / float64(depth)
	if targetFile != "" && upstreamFile != "" && targetFile != upstreamFile {
		score, err := a.CouplingForPair(targetFile, upstreamFile)
		if err != nil {
			return CausalLink{}, false, err
		}
		if score.CoChangeCount > 0 {
			coupling = score.Fused
		}
	}

	link := CausalLink{
		SymbolID: upstreamID, FilePath: upstreamFile, Depth: depth, Path: path,
		ChangeMagnitude: magnitude, CouplingScore: coupling, RecencyWeight: recencyWeight,
		CausalScore: recencyWeight * coupling * magnitude,
		ChangedAt:   after.CreatedAt,
		Diff:        diffSIR(before.SIR, afterSIR),
	}
	return link, true, nil
}

// diffSIR computes the field-level before/after comparison §4.11.3 wants
// surfaced alongside each causal link's score.
func diffSIR(before, after sir.SIR) SIRFieldDiff {
	return SIRFieldDiff{
		IntentChanged:       before.Intent != after.Intent,
		EdgeCasesAdded:      stringsAdded(before.EdgeCases, after.EdgeCases),
		EdgeCasesRemoved:    stringsAdded(after.EdgeCases, before.EdgeCases),
		DependenciesAdded:   stringsAdded(before.Dependencies, after.Dependencies),
		DependenciesRemoved: stringsAdded(after.Dependencies, before.Dependencies),
	}
}

// stringsAdded returns every element of to that is not present in from —
// used both directions (swap args) to get an added/removed pair from one
// helper.
func stringsAdded(from, to []string) []string {
	present := make(map[string]bool, len(from))
	for _, s := range from {
		present[s] = true
	}
	var out []string
	for _, s := range to {
		if !present[s] {
			out = append(out, s)
		}
	}
	return out
}
