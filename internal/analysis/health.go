package analysis

import (
	"sort"
	"time"

	"aether/internal/config"
	"aether/internal/symbol"
)

// RiskFactors is the per-factor breakdown behind one symbol's composite
// risk score, kept alongside the score so the dashboard can render a
// human-readable explanation instead of a bare number.
type RiskFactors struct {
	NormalizedPageRank float64
	MissingTestRatio   float64 // 1 − test_coverage_ratio
	DriftMagnitude     float64
	MissingSIR         bool
	AccessRecency      float64
}

// SymbolRisk is one symbol's composite graph-health score.
type SymbolRisk struct {
	SymbolID symbol.SymbolID
	FilePath string
	Risk     float64
	Factors  RiskFactors
}

// HealthDashboard is the §4.11.4 surfaced view: critical symbols by
// PageRank, bottlenecks by betweenness, cycles, orphans, and the top risk
// hotspots by composite score.
type HealthDashboard struct {
	Critical    []SymbolRisk
	Bottlenecks []SymbolRisk
	Cycles      [][]symbol.SymbolID
	Orphans     [][]symbol.SymbolID
	Hotspots    []SymbolRisk
}

// ComputeRisk scores one symbol against the configured risk weights.
// normalizedPageRank is the symbol's PageRank divided by the graph's
// maximum, passed in so callers scoring many symbols compute it once.
func (a *Analyzer) ComputeRisk(sym symbol.Symbol, normalizedPageRank float64) (SymbolRisk, error) {
	weights := config.RiskWeights{PageRank: 0.30, TestCoverage: 0.25, Drift: 0.20, MissingSIR: 0.15, AccessRecency: 0.10}
	if a.cfg != nil {
		weights = a.cfg.Health.RiskWeights
	}

	testCount, err := a.relStore.TestIntentCountForSymbol(sym.ID)
	if err != nil {
		return SymbolRisk{}, err
	}
	coverageRatio := 0.0
	if testCount > 0 {
		coverageRatio = 1.0
	}
	missingTestRatio := 1 - coverageRatio

	driftMagnitude := 0.0
	driftResults, err := a.relStore.DriftResultsForSymbol(sym.ID.String())
	if err != nil {
		return SymbolRisk{}, err
	}
	for _, d := range driftResults {
		if d.IsAcknowledged {
			continue
		}
		if d.DriftMagnitude > driftMagnitude {
			driftMagnitude = d.DriftMagnitude
		}
	}

	leaf, err := a.relStore.GetLeafSIR(sym.ID)
	if err != nil {
		return SymbolRisk{}, err
	}
	missingSIR := leaf == nil

	accessRecency := 1.0 // never accessed: treated as maximally stale
	if sym.LastAccessedAt != nil {
		days := time.Since(*sym.LastAccessedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		accessRecency = days / (1 + days)
	}

	missingSIRFactor := 0.0
	if missingSIR {
		missingSIRFactor = 1.0
	}

	risk := weights.PageRank*normalizedPageRank +
		weights.TestCoverage*missingTestRatio +
		weights.Drift*driftMagnitude +
		weights.MissingSIR*missingSIRFactor +
		weights.AccessRecency*accessRecency

	return SymbolRisk{
		SymbolID: sym.ID, FilePath: sym.FilePath, Risk: risk,
		Factors: RiskFactors{
			NormalizedPageRank: normalizedPageRank, MissingTestRatio: missingTestRatio,
			DriftMagnitude: driftMagnitude, MissingSIR: missingSIR, AccessRecency: accessRecency,
		},
	}, nil
}

// Dashboard builds the full §4.11.4 graph-health view over every symbol
// currently stored.
func (a *Analyzer) Dashboard(topN int) (HealthDashboard, error) {
	symbols, err := a.relStore.AllSymbols()
	if err != nil {
		return HealthDashboard{}, err
	}

	ranks := map[symbol.SymbolID]float64{}
	betweenness := map[symbol.SymbolID]float64{}
	var cycles, orphans [][]symbol.SymbolID
	if a.graphStore != nil {
		ranks, err = a.graphStore.PageRank()
		if err != nil {
			return HealthDashboard{}, err
		}
		betweenness, err = a.graphStore.Betweenness()
		if err != nil {
			return HealthDashboard{}, err
		}
		sccs, err := a.graphStore.SCC()
		if err != nil {
			return HealthDashboard{}, err
		}
		for _, c := range sccs {
			if len(c) > 1 {
				cycles = append(cycles, c)
			}
		}
		components, err := a.graphStore.ConnectedComponents()
		if err != nil {
			return HealthDashboard{}, err
		}
		if len(components) > 1 {
			largest := 0
			for i, c := range components {
				if len(c) > len(components[largest]) {
					largest = i
				}
			}
			for i, c := range components {
				if i != largest {
					orphans = append(orphans, c)
				}
			}
		}
	}

	maxRank := 0.0
	for _, r := range ranks {
		if r > maxRank {
			maxRank = r
		}
	}

	var scored []SymbolRisk
	for _, sym := range symbols {
		normalized := 0.0
		if maxRank > 0 {
			normalized = ranks[sym.ID] / maxRank
		}
		risk, err := a.ComputeRisk(sym, normalized)
		if err != nil {
			return HealthDashboard{}, err
		}
		scored = append(scored, risk)
	}

	critical := append([]SymbolRisk(nil), scored...)
	sort.Slice(critical, func(i, j int) bool { return critical[i].Factors.NormalizedPageRank > critical[j].Factors.NormalizedPageRank })
	critical = clampRisk(critical, topN)

	bottlenecks := append([]SymbolRisk(nil), scored...)
	sort.Slice(bottlenecks, func(i, j int) bool { return betweenness[bottlenecks[i].SymbolID] > betweenness[bottlenecks[j].SymbolID] })
	bottlenecks = clampRisk(bottlenecks, topN)

	hotspots := append([]SymbolRisk(nil), scored...)
	sort.Slice(hotspots, func(i, j int) bool { return hotspots[i].Risk > hotspots[j].Risk })
	hotspots = clampRisk(hotspots, topN)

	return HealthDashboard{
		Critical: critical, Bottlenecks: bottlenecks, Cycles: cycles, Orphans: orphans, Hotspots: hotspots,
	}, nil
}

func clampRisk(s []SymbolRisk, n int) []SymbolRisk {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
