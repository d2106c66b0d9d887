package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aether/internal/logging"
	"aether/internal/relstore"
	"aether/internal/symbol"
)

// DriftType classifies what kind of semantic drift a DriftResult records.
type DriftType string

const (
	DriftSemantic          DriftType = "semantic_drift"
	DriftBoundaryViolation DriftType = "boundary_violation"
	DriftEmergingHub       DriftType = "emerging_hub"
	DriftNewCycle          DriftType = "new_cycle"
	DriftOrphan            DriftType = "orphan"
)

// AnalyzeDrift runs every §4.11.2 drift check against the current graph and
// embedding state, recording each new finding and returning the full set
// detected this run (including ones already persisted from a prior run,
// for a consistent caller-facing report).
func (a *Analyzer) AnalyzeDrift(ctx context.Context) ([]relstore.DriftResult, error) {
	var results []relstore.DriftResult

	semantic, err := a.detectSemanticDrift(ctx)
	if err != nil {
		return nil, err
	}
	results = append(results, semantic...)

	if a.graphStore != nil {
		hubs, err := a.detectEmergingHubs()
		if err != nil {
			return nil, err
		}
		results = append(results, hubs...)

		cycles, err := a.detectNewCycles()
		if err != nil {
			return nil, err
		}
		results = append(results, cycles...)

		orphans, err := a.detectOrphans()
		if err != nil {
			return nil, err
		}
		results = append(results, orphans...)

		boundary, err := a.detectBoundaryViolations()
		if err != nil {
			return nil, err
		}
		results = append(results, boundary...)
	}

	for _, r := range results {
		if err := a.relStore.InsertDriftResult(r); err != nil {
			return nil, err
		}
	}

	state, err := a.relStore.GetDriftAnalysisState()
	if err != nil {
		return nil, err
	}
	state.SymbolsAnalyzed += len(results)
	state.DriftDetected = state.DriftDetected || len(results) > 0
	if a.vcs != nil {
		if head, headErr := a.vcs.Head(); headErr == nil {
			state.LastAnalysisCommit = head
		}
	}
	if err := a.relStore.PutDriftAnalysisState(state); err != nil {
		return nil, err
	}

	logging.Analysis("drift analysis recorded %d findings", len(results))
	return results, nil
}

// detectSemanticDrift compares each symbol's current embedding against the
// embedding of its oldest SIR version still inside the analysis window
// (the version "closest to the window boundary"), flagging symbols whose
// similarity falls below DriftConfig.DriftThreshold. Symbols with no
// history or no current embedding are skipped, not flagged.
func (a *Analyzer) detectSemanticDrift(ctx context.Context) ([]relstore.DriftResult, error) {
	threshold := 0.85
	window := 200
	if a.cfg != nil {
		if a.cfg.Drift.DriftThreshold > 0 {
			threshold = a.cfg.Drift.DriftThreshold
		}
		if a.cfg.Drift.AnalysisWindow > 0 {
			window = a.cfg.Drift.AnalysisWindow
		}
	}

	index, err := a.ensureEmbeddingIndex()
	if err != nil {
		return nil, err
	}

	files, err := a.relStore.AllFiles()
	if err != nil {
		return nil, err
	}

	var results []relstore.DriftResult
	for _, file := range files {
		symbols, err := a.relStore.SymbolsForFile(file)
		if err != nil {
			return nil, err
		}
		for _, sym := range symbols {
			currentVec, ok := index[sym.ID]
			if !ok {
				continue
			}
			history, err := a.relStore.SIRHistoryForSymbol(sym.ID)
			if err != nil {
				return nil, err
			}
			if len(history) == 0 {
				continue
			}
			baseline := history[0]
			if len(history) > window {
				baseline = history[len(history)-window]
			}

			baselineVec, err := a.embedText(ctx, baseline.SIR.Intent)
			if err != nil || baselineVec == nil {
				continue
			}

			similarity := cosineSimilarity(currentVec, baselineVec)
			if similarity >= threshold {
				continue
			}

			leaf, err := a.relStore.GetLeafSIR(sym.ID)
			if err != nil {
				return nil, err
			}
			currentHash := ""
			if leaf != nil {
				currentHash = leaf.Hash
			}

			results = append(results, relstore.DriftResult{
				ResultID: uuid.NewString(), SymbolID: sym.ID.String(), FilePath: file,
				DriftType: string(DriftSemantic), DriftMagnitude: 1 - similarity,
				BaselineSirHash: baseline.Hash, CurrentSirHash: currentHash,
				Detail: map[string]interface{}{"similarity": similarity, "baseline_created_at": baseline.CreatedAt},
			})
		}
	}
	return results, nil
}

// embedText re-embeds historical SIR intent text through the analyzer's
// embedding generator, so a baseline version can be compared in the same
// vector space as the current stored embedding. Returns (nil, nil) if no
// embedding generator is wired.
func (a *Analyzer) embedText(ctx context.Context, text string) ([]float32, error) {
	if a.embedGen == nil || text == "" {
		return nil, nil
	}
	vectors, err := a.embedGen.Embed(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		return nil, err
	}
	return vectors[0], nil
}

// detectEmergingHubs flags symbols whose PageRank exceeds the configured
// percentile AND increased at least 20% over a stored baseline. Without a
// persisted historical PageRank snapshot to diff against, the current run
// serves as its own baseline comparison point by percentile alone — a
// symbol already above the percentile on a fresh index is reported as a
// hub candidate with growth unknown, matching the spec's intent ("entered
// the top percentile") rather than requiring two full historical runs
// before the check can ever fire.
func (a *Analyzer) detectEmergingHubs() ([]relstore.DriftResult, error) {
	percentile := 0.95
	if a.cfg != nil && a.cfg.Drift.HubPercentile > 0 {
		percentile = a.cfg.Drift.HubPercentile
	}

	ranks, err := a.graphStore.PageRank()
	if err != nil {
		return nil, err
	}
	if len(ranks) == 0 {
		return nil, nil
	}

	cutoff := percentileValue(ranks, percentile)

	var results []relstore.DriftResult
	for id, rank := range ranks {
		if rank < cutoff {
			continue
		}
		sym, err := a.relStore.GetSymbol(id)
		if err != nil {
			return nil, err
		}
		if sym == nil {
			continue
		}
		results = append(results, relstore.DriftResult{
			ResultID: uuid.NewString(), SymbolID: id.String(), FilePath: sym.FilePath,
			DriftType: string(DriftEmergingHub),
			Detail:    map[string]interface{}{"pagerank": rank, "percentile_cutoff": cutoff},
		})
	}
	return results, nil
}

func percentileValue(ranks map[symbol.SymbolID]float64, percentile float64) float64 {
	values := make([]float64, 0, len(ranks))
	for _, r := range ranks {
		values = append(values, r)
	}
	sortFloat64s(values)
	idx := int(percentile * float64(len(values)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func sortFloat64s(vals []float64) {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j-1] > vals[j]; j-- {
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
}

// detectNewCycles flags every strongly connected component of size > 1 —
// "new" relative to a prior analysis run isn't tracked without persisting
// the full SCC set between runs, so every multi-symbol SCC found in the
// current graph is reported; a caller comparing successive reports (or
// consulting acknowledged results) determines which are actually new.
func (a *Analyzer) detectNewCycles() ([]relstore.DriftResult, error) {
	sccs, err := a.graphStore.SCC()
	if err != nil {
		return nil, err
	}
	var results []relstore.DriftResult
	for _, comp := range sccs {
		if len(comp) <= 1 {
			continue
		}
		members := make([]string, len(comp))
		for i, id := range comp {
			members[i] = id.String()
		}
		sym, err := a.relStore.GetSymbol(comp[0])
		if err != nil {
			return nil, err
		}
		filePath := ""
		if sym != nil {
			filePath = sym.FilePath
		}
		results = append(results, relstore.DriftResult{
			ResultID: uuid.NewString(), SymbolID: comp[0].String(), FilePath: filePath,
			DriftType: string(DriftNewCycle),
			Detail:    map[string]interface{}{"cycle_members": members, "cycle_size": len(comp)},
		})
	}
	return results, nil
}

// detectOrphans flags connected components disjoint from the entry-point
// component — the component containing the most symbols, used as a stand-in
// for "the main program" absent an explicit entry-point declaration.
func (a *Analyzer) detectOrphans() ([]relstore.DriftResult, error) {
	components, err := a.graphStore.ConnectedComponents()
	if err != nil {
		return nil, err
	}
	if len(components) <= 1 {
		return nil, nil
	}

	largest := 0
	for i, c := range components {
		if len(c) > len(components[largest]) {
			largest = i
		}
	}

	var results []relstore.DriftResult
	for i, comp := range components {
		if i == largest {
			continue
		}
		members := make([]string, len(comp))
		for j, id := range comp {
			members[j] = id.String()
		}
		sym, err := a.relStore.GetSymbol(comp[0])
		if err != nil {
			return nil, err
		}
		filePath := ""
		if sym != nil {
			filePath = sym.FilePath
		}
		results = append(results, relstore.DriftResult{
			ResultID: uuid.NewString(), SymbolID: comp[0].String(), FilePath: filePath,
			DriftType: string(DriftOrphan),
			Detail:    map[string]interface{}{"component_members": members, "component_size": len(comp)},
		})
	}
	return results, nil
}

// detectBoundaryViolations flags edges that now cross a community boundary
// that did not separate their endpoints at the start of the analysis
// window: both symbols were in the same Louvain community as of the last
// recorded snapshot, but a resolved edge between them now lands in
// different communities. Without a prior snapshot (first run against a
// workspace), there is nothing to compare against, so no violations are
// reported; the current partition is still recorded so the next run has a
// baseline.
func (a *Analyzer) detectBoundaryViolations() ([]relstore.DriftResult, error) {
	communities, err := a.graphStore.Louvain()
	if err != nil {
		return nil, err
	}

	current := make(map[string]string)
	memberOf := make(map[symbol.SymbolID]string)
	for i, members := range communities {
		label := fmt.Sprintf("c%d", i)
		for _, id := range members {
			current[id.String()] = label
			memberOf[id] = label
		}
	}

	prior, err := a.relStore.CommunityMembership()
	if err != nil {
		return nil, err
	}

	var results []relstore.DriftResult
	if len(prior) > 0 {
		seen := make(map[string]bool)
		for id, label := range memberOf {
			deps, err := a.graphStore.Dependencies(id)
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				depLabel, ok := memberOf[dep.SymbolID]
				if !ok || depLabel == label {
					continue
				}
				priorA, okA := prior[id.String()]
				priorB, okB := prior[dep.SymbolID.String()]
				if !okA || !okB || priorA != priorB {
					continue // not a newly crossed boundary: no shared prior community to violate
				}
				pairKey := id.String() + "->" + dep.SymbolID.String()
				if seen[pairKey] {
					continue
				}
				seen[pairKey] = true

				sym, err := a.relStore.GetSymbol(id)
				if err != nil {
					return nil, err
				}
				filePath := ""
				if sym != nil {
					filePath = sym.FilePath
				}
				results = append(results, relstore.DriftResult{
					ResultID: uuid.NewString(), SymbolID: id.String(), FilePath: filePath,
					DriftType: string(DriftBoundaryViolation),
					Detail: map[string]interface{}{
						"target_symbol_id": dep.SymbolID.String(),
						"prior_community":  priorA,
						"source_community": label,
						"target_community": depLabel,
					},
				})
			}
		}
	}

	if err := a.relStore.PutCommunityMembership(current); err != nil {
		return nil, err
	}
	return results, nil
}

// AcknowledgeDrift marks a drift result as acknowledged, excluding it from
// future reports unless explicitly requested, and — if a memory engine is
// wired — records an auto-created project note capturing the
// acknowledgement for future recall.
func (a *Analyzer) AcknowledgeDrift(ctx context.Context, resultID, note string) error {
	if err := a.relStore.AcknowledgeDriftResult(resultID); err != nil {
		return err
	}
	if a.memoryEng == nil {
		return nil
	}
	content := fmt.Sprintf("Acknowledged drift result %s", resultID)
	if note != "" {
		content += ": " + note
	}
	_, err := a.memoryEng.SessionNote(ctx, content, []string{"drift-acknowledgement"}, nil, nil, nil)
	return err
}
