package analysis

import (
	"sort"
	"strings"

	"aether/internal/config"
	"aether/internal/logging"
	"aether/internal/relstore"
	"aether/internal/vcsreader"
)

// CouplingClass is the §4.11.1 classification of a coupled file pair.
type CouplingClass string

const (
	CouplingMulti             CouplingClass = "multi"
	CouplingStructural        CouplingClass = "structural"
	CouplingSemantic          CouplingClass = "semantic"
	CouplingHiddenOperational CouplingClass = "hidden_operational"
	CouplingTemporal          CouplingClass = "temporal"
)

// RiskBand is the qualitative risk level a fused coupling score falls
// into.
type RiskBand string

const (
	RiskCritical RiskBand = "critical"
	RiskHigh     RiskBand = "high"
	RiskMedium   RiskBand = "medium"
	RiskLow      RiskBand = "low"
)

// CouplingScore is one file pair's multi-signal coupling assessment.
type CouplingScore struct {
	FileA         string
	FileB         string
	CoChangeCount int
	Temporal      float64
	Static        float64
	Semantic      float64
	Fused         float64
	Class         CouplingClass
	Risk          RiskBand
}

// defaultExcludedPatterns mirrors the miner's generated/vendor skip list when a
// workspace hasn't configured CouplingConfig.ExcludePatterns explicitly.
var defaultExcludedPatterns = []string{"vendor/", "node_modules/", ".git/"}

// MineCoupling walks VCS history backward from HEAD, incrementally resuming
// from the last-mined commit, accumulating per-file commit counts and
// ordered-pair co-change counts in the relational store. It is a no-op if
// the Analyzer was built without a VCSWalker.
func (a *Analyzer) MineCoupling() (commitsScanned int, err error) {
	if a.vcs == nil {
		return 0, nil
	}

	window := 500
	maxFiles := 50
	excludes := defaultExcludedPatterns
	if a.cfg != nil {
		if a.cfg.Coupling.CommitWindow > 0 {
			window = a.cfg.Coupling.CommitWindow
		}
		if a.cfg.Coupling.MaxFilesPerCommit > 0 {
			maxFiles = a.cfg.Coupling.MaxFilesPerCommit
		}
		if len(a.cfg.Coupling.ExcludePatterns) > 0 {
			excludes = a.cfg.Coupling.ExcludePatterns
		}
	}

	state, err := a.relStore.GetCouplingMiningState()
	if err != nil {
		return 0, err
	}

	var newestHash string
	scanned := 0
	walkErr := a.vcs.WalkBackward(window, state.LastCommit, func(c vcsreader.Commit) error {
		if newestHash == "" {
			newestHash = c.Hash
		}
		if c.IsMerge {
			return nil
		}
		files := filterExcluded(c.Files, excludes)
		if len(files) == 0 || len(files) > maxFiles {
			return nil
		}
		scanned++
		for _, f := range files {
			if incErr := a.relStore.IncrementFileCommitCount(f); incErr != nil {
				return incErr
			}
		}
		sorted := append([]string(nil), files...)
		sort.Strings(sorted)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if incErr := a.relStore.IncrementCoChange(sorted[i], sorted[j]); incErr != nil {
					return incErr
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return scanned, walkErr
	}

	if newestHash != "" {
		if err := a.relStore.PutCouplingMiningState(relstore.CouplingMiningState{
			LastCommit:     newestHash,
			CommitsScanned: state.CommitsScanned + scanned,
		}); err != nil {
			return scanned, err
		}
	}
	logging.Analysis("coupling mining scanned %d commits", scanned)
	return scanned, nil
}

func filterExcluded(files []string, patterns []string) []string {
	if len(patterns) == 0 {
		return files
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		excluded := false
		for _, p := range patterns {
			if strings.Contains(f, p) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, f)
		}
	}
	return out
}

// CouplingForPair computes the full multi-signal coupling score for one
// ordered file pair, using whatever co-change data has been mined plus the
// current graph and embedding state. A pair that has never co-changed gets
// a Temporal signal of 0; its static and semantic signals are still
// computed and fused.
func (a *Analyzer) CouplingForPair(fileA, fileB string) (CouplingScore, error) {
	coChange, err := a.relStore.CoChangeCount(fileA, fileB)
	if err != nil {
		return CouplingScore{}, err
	}

	commitsA, err := a.relStore.FileCommitCount(fileA)
	if err != nil {
		return CouplingScore{}, err
	}
	commitsB, err := a.relStore.FileCommitCount(fileB)
	if err != nil {
		return CouplingScore{}, err
	}

	temporal := 0.0
	if maxCommits := maxInt(commitsA, commitsB); maxCommits > 0 {
		temporal = float64(coChange) / float64(maxCommits)
	}

	static, err := a.staticSignal(fileA, fileB)
	if err != nil {
		return CouplingScore{}, err
	}

	semantic, err := a.semanticSignal(fileA, fileB)
	if err != nil {
		return CouplingScore{}, err
	}

	fused := 0.5*temporal + 0.3*static + 0.2*semantic

	score := CouplingScore{
		FileA: fileA, FileB: fileB, CoChangeCount: coChange,
		Temporal: temporal, Static: static, Semantic: semantic, Fused: fused,
		Class: classifyCoupling(static, temporal, semantic),
		Risk:  riskBand(fused),
	}
	return score, nil
}

func classifyCoupling(static, temporal, semantic float64) CouplingClass {
	switch {
	case static > 0 && temporal >= 0.2:
		return CouplingMulti
	case static > 0:
		return CouplingStructural
	case semantic >= 0.3:
		return CouplingSemantic
	case temporal >= 0.5:
		return CouplingHiddenOperational
	default:
		return CouplingTemporal
	}
}

func riskBand(fused float64) RiskBand {
	switch {
	case fused >= 0.7:
		return RiskCritical
	case fused >= 0.4:
		return RiskHigh
	case fused >= 0.2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// staticSignal is 1 if any resolved edge connects a symbol in fileA to a
// symbol in fileB (in either direction), else 0.
func (a *Analyzer) staticSignal(fileA, fileB string) (float64, error) {
	if a.graphStore == nil {
		return 0, nil
	}
	symbolsA, err := a.relStore.SymbolsForFile(fileA)
	if err != nil {
		return 0, err
	}
	for _, sym := range symbolsA {
		deps, err := a.graphStore.Dependencies(sym.ID)
		if err != nil {
			return 0, err
		}
		for _, d := range deps {
			if d.FilePath == fileB {
				return 1, nil
			}
		}
	}
	symbolsB, err := a.relStore.SymbolsForFile(fileB)
	if err != nil {
		return 0, err
	}
	for _, sym := range symbolsB {
		deps, err := a.graphStore.Dependencies(sym.ID)
		if err != nil {
			return 0, err
		}
		for _, d := range deps {
			if d.FilePath == fileA {
				return 1, nil
			}
		}
	}
	return 0, nil
}

// semanticSignal is the maximum SIR-embedding cosine similarity across
// every (symbol in fileA, symbol in fileB) pair, or 0 if either file has no
// embedded symbol.
func (a *Analyzer) semanticSignal(fileA, fileB string) (float64, error) {
	symbolsA, err := a.relStore.SymbolsForFile(fileA)
	if err != nil {
		return 0, err
	}
	symbolsB, err := a.relStore.SymbolsForFile(fileB)
	if err != nil {
		return 0, err
	}
	if len(symbolsA) == 0 || len(symbolsB) == 0 {
		return 0, nil
	}

	index, err := a.ensureEmbeddingIndex()
	if err != nil {
		return 0, err
	}

	best := 0.0
	found := false
	for _, sa := range symbolsA {
		va, ok := index[sa.ID]
		if !ok {
			continue
		}
		for _, sb := range symbolsB {
			vb, ok := index[sb.ID]
			if !ok {
				continue
			}
			sim := cosineSimilarity(va, vb)
			if !found || sim > best {
				best = sim
				found = true
			}
		}
	}
	if !found {
		return 0, nil
	}
	return best, nil
}

// TopCoupledFiles returns the highest-fused-score coupling partners for
// file, among every pair that has met the configured minimum co-change
// count, descending by fused score.
func (a *Analyzer) TopCoupledFiles(file string, limit int) ([]CouplingScore, error) {
	minCoChange := 3
	if a.cfg != nil && a.cfg.Coupling.MinCoChangeCount > 0 {
		minCoChange = a.cfg.Coupling.MinCoChangeCount
	}
	pairs, err := a.relStore.CouplingPairsForFile(file)
	if err != nil {
		return nil, err
	}

	var out []CouplingScore
	for _, p := range pairs {
		if p.CoChangeCount < minCoChange {
			continue
		}
		other := p.FileB
		if other == file {
			other = p.FileA
		}
		score, err := a.CouplingForPair(file, other)
		if err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fused > out[j].Fused })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AllCoupledPairs returns every file pair meeting the configured minimum
// co-change count, fully scored and classified, for the coupling dashboard.
func (a *Analyzer) AllCoupledPairs(cfgOverride *config.CouplingConfig) ([]CouplingScore, error) {
	minCoChange := 3
	if cfgOverride != nil && cfgOverride.MinCoChangeCount > 0 {
		minCoChange = cfgOverride.MinCoChangeCount
	} else if a.cfg != nil && a.cfg.Coupling.MinCoChangeCount > 0 {
		minCoChange = a.cfg.Coupling.MinCoChangeCount
	}

	pairs, err := a.relStore.CouplingPairsAbove(minCoChange)
	if err != nil {
		return nil, err
	}
	out := make([]CouplingScore, 0, len(pairs))
	for _, p := range pairs {
		score, err := a.CouplingForPair(p.FileA, p.FileB)
		if err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fused > out[j].Fused })
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
