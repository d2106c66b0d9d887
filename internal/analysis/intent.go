package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"aether/internal/relstore"
	"aether/internal/sir"
	"aether/internal/symbol"
)

// maxVerifySurroundingBytes bounds how much of a file's content is sent as
// surrounding context when verify regenerates a stale leaf, mirroring
// orchestrator.maxSurroundingContextBytes.
const maxVerifySurroundingBytes = 8000

// IntentClassification is the §4.11.5 verify outcome for one snapshot
// symbol, a similarity-banded judgment of whether its SIR still expresses
// the same intent.
type IntentClassification string

const (
	IntentPreserved    IntentClassification = "preserved"
	IntentShiftedMinor IntentClassification = "shifted_minor"
	IntentShiftedMajor IntentClassification = "shifted_major"
)

// SymbolIntentShift is one snapshot symbol's verify result once its
// similarity falls below the preserved threshold.
type SymbolIntentShift struct {
	SymbolID             symbol.SymbolID
	Similarity           float64
	Classification       IntentClassification
	Diff                 SIRFieldDiff
	UntestedNewEdgeCases []string
}

// VerifyReport is the full §4.11.5 verify outcome for one snapshot.
type VerifyReport struct {
	SnapshotID string
	Preserved  []symbol.SymbolID
	Shifted    []SymbolIntentShift
	Removed    []symbol.SymbolID
	Added      []symbol.SymbolID
}

// Snapshot captures {symbol_id, sir_hash} for every symbol currently in
// scope and persists it atomically as a named baseline. Symbols with no
// SIR generated yet are excluded: there is no intent to snapshot.
func (a *Analyzer) Snapshot(scope, target, label string) (relstore.IntentSnapshot, error) {
	symbols, err := a.symbolsInScope(scope, target)
	if err != nil {
		return relstore.IntentSnapshot{}, err
	}

	captured := make(map[string]string)
	for _, sym := range symbols {
		leaf, err := a.relStore.GetLeafSIR(sym.ID)
		if err != nil {
			return relstore.IntentSnapshot{}, err
		}
		if leaf == nil {
			continue
		}
		captured[sym.ID.String()] = leaf.Hash
	}

	snap := relstore.IntentSnapshot{
		SnapshotID: uuid.NewString(), Label: label, Scope: scope, Target: target, Symbols: captured,
	}
	if err := a.relStore.InsertIntentSnapshot(snap); err != nil {
		return relstore.IntentSnapshot{}, err
	}
	return snap, nil
}

// Verify compares a previously captured snapshot against the current SIR
// state, classifying every snapshot symbol as preserved or shifted, and
// separately reporting symbols removed from or added to the scope since
// capture. When regenerateSIR is true and a SirGenerator has been wired in
// via WithSIRGenerator, every in-scope symbol whose leaf SIR is stale or
// missing is regenerated before scoring, per §4.11.5's verify(snapshot_id,
// regenerate_sir?) contract. Without a wired generator, regenerateSIR is a
// no-op: verify falls back to whatever SIR the indexing pipeline has
// already produced.
func (a *Analyzer) Verify(ctx context.Context, snapshotID string, regenerateSIR bool) (VerifyReport, error) {
	snap, err := a.relStore.GetIntentSnapshot(snapshotID)
	if err != nil {
		return VerifyReport{}, err
	}

	currentSymbols, err := a.symbolsInScope(snap.Scope, snap.Target)
	if err != nil {
		return VerifyReport{}, err
	}

	if regenerateSIR && a.sirGen != nil {
		a.regenerateStaleLeaves(ctx, currentSymbols)
	}

	currentByID := make(map[string]symbol.Symbol, len(currentSymbols))
	for _, sym := range currentSymbols {
		currentByID[sym.ID.String()] = sym
	}

	preservedThreshold := 0.90
	shiftedThreshold := 0.70
	if a.cfg != nil {
		if a.cfg.Intent.SimilarityPreservedThreshold > 0 {
			preservedThreshold = a.cfg.Intent.SimilarityPreservedThreshold
		}
		if a.cfg.Intent.SimilarityShiftedThreshold > 0 {
			shiftedThreshold = a.cfg.Intent.SimilarityShiftedThreshold
		}
	}

	report := VerifyReport{SnapshotID: snapshotID}
	index, err := a.ensureEmbeddingIndex()
	if err != nil {
		return VerifyReport{}, err
	}

	for idHex, baselineHash := range snap.Symbols {
		sid, err := symbol.ParseSymbolID(idHex)
		if err != nil {
			continue
		}
		if _, ok := currentByID[idHex]; !ok {
			report.Removed = append(report.Removed, sid)
			continue
		}

		leaf, err := a.relStore.GetLeafSIR(sid)
		if err != nil {
			return VerifyReport{}, err
		}
		if leaf == nil {
			continue // SIR since deleted without the symbol itself vanishing: nothing to compare
		}
		if leaf.Hash == baselineHash {
			report.Preserved = append(report.Preserved, sid)
			continue
		}

		baselineSIR, haveBaseline := a.findHistoricalSIR(sid, baselineHash)

		similarity := 1.0
		if haveBaseline {
			currentVec, haveCurrent := index[sid]
			baselineVec, _ := a.embedText(ctx, baselineSIR.Intent)
			switch {
			case haveCurrent && baselineVec != nil:
				similarity = cosineSimilarity(currentVec, baselineVec)
			default:
				similarity = textSimilarityFallback(baselineSIR, leaf.SIR)
			}
		}

		class := IntentPreserved
		switch {
		case similarity >= preservedThreshold:
			class = IntentPreserved
		case similarity >= shiftedThreshold:
			class = IntentShiftedMinor
		default:
			class = IntentShiftedMajor
		}

		if class == IntentPreserved {
			report.Preserved = append(report.Preserved, sid)
			continue
		}

		diff := diffSIR(baselineSIR, leaf.SIR)
		untested, err := a.untestedNewEdgeCases(sid, diff.EdgeCasesAdded)
		if err != nil {
			return VerifyReport{}, err
		}

		report.Shifted = append(report.Shifted, SymbolIntentShift{
			SymbolID: sid, Similarity: similarity, Classification: class,
			Diff: diff, UntestedNewEdgeCases: untested,
		})
	}

	for idHex, sym := range currentByID {
		if _, ok := snap.Symbols[idHex]; !ok {
			report.Added = append(report.Added, sym.ID)
		}
	}

	return report, nil
}

// regenerateStaleLeaves regenerates the SIR for every symbol in symbols
// whose leaf is stale or has never been generated, the same
// GenerateValidated/PutSIR call the indexing pipeline makes for a changed
// symbol. Symbols are grouped by file so each file is read at most once.
// A regeneration failure marks the symbol stale (consistent with the
// indexing pipeline's failure-preservation contract) and verify proceeds
// to score against whatever leaf SIR already existed.
func (a *Analyzer) regenerateStaleLeaves(ctx context.Context, symbols []symbol.Symbol) {
	byFile := make(map[string][]symbol.Symbol)
	for _, sym := range symbols {
		leaf, err := a.relStore.GetLeafSIR(sym.ID)
		if err != nil || (leaf != nil && leaf.Status != "stale") {
			continue
		}
		byFile[sym.FilePath] = append(byFile[sym.FilePath], sym)
	}

	for filePath, stale := range byFile {
		content, err := os.ReadFile(filepath.Join(a.workspaceDir, filepath.FromSlash(filePath)))
		if err != nil {
			continue
		}
		surrounding := truncateText(string(content), maxVerifySurroundingBytes)
		for _, sym := range stale {
			symbolText := extractSymbolText(content, sym)
			record, err := a.sirGen.GenerateValidated(ctx, symbolText, surrounding)
			if err != nil {
				_ = a.relStore.MarkStale(sym.ID, err.Error(), time.Now().UTC())
				continue
			}
			canonical, err := sir.Canonicalize(record)
			if err != nil {
				continue
			}
			_ = a.relStore.PutSIR(sym.ID, record, sir.HashBytes(canonical), string(canonical), "")
		}
	}
}

// extractSymbolText mirrors orchestrator.extractSymbolText: the symbol's
// own source range, or its qualified name if the range no longer fits the
// file (e.g. the file changed shape since the symbol was last indexed).
func extractSymbolText(content []byte, sym symbol.Symbol) string {
	if sym.StartByte < 0 || sym.EndByte > len(content) || sym.StartByte > sym.EndByte {
		return sym.QualifiedName
	}
	return string(content[sym.StartByte:sym.EndByte])
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// findHistoricalSIR locates the sir_history entry matching hash, the
// baseline text a verify pass diffs the current SIR against.
func (a *Analyzer) findHistoricalSIR(sid symbol.SymbolID, hash string) (sir.SIR, bool) {
	history, err := a.relStore.SIRHistoryForSymbol(sid)
	if err != nil {
		return sir.SIR{}, false
	}
	for _, h := range history {
		if h.Hash == hash {
			return h.SIR, true
		}
	}
	return sir.SIR{}, false
}

// untestedNewEdgeCases flags newly introduced edge cases that no current
// test intent's text appears to cover, a simple substring cross-reference
// in the absence of a structured test-to-edge-case mapping.
func (a *Analyzer) untestedNewEdgeCases(sid symbol.SymbolID, newEdgeCases []string) ([]string, error) {
	if len(newEdgeCases) == 0 {
		return nil, nil
	}
	sym, err := a.relStore.GetSymbol(sid)
	if err != nil || sym == nil {
		return newEdgeCases, nil
	}

	var untested []string
	for _, ec := range newEdgeCases {
		matches, searchErr := a.relStore.SearchTestIntents(ec, 5)
		if searchErr != nil {
			return nil, searchErr
		}
		covered := false
		for _, m := range matches {
			if strings.EqualFold(m.FilePath, sym.FilePath) || (m.SymbolID != nil && *m.SymbolID == sid) {
				covered = true
				break
			}
		}
		if !covered {
			untested = append(untested, ec)
		}
	}
	return untested, nil
}

// textSimilarityFallback approximates similarity when no embedding is
// available for either side: the fraction of before's edge_cases and
// dependencies still present in after, weighted evenly with intent
// equality — a coarse stand-in for cosine similarity over text.
func textSimilarityFallback(before, after sir.SIR) float64 {
	score := 0.0
	total := 0.0

	total++
	if before.Intent == after.Intent {
		score++
	}

	total++
	score += fieldOverlap(before.EdgeCases, after.EdgeCases)

	total++
	score += fieldOverlap(before.Dependencies, after.Dependencies)

	if total == 0 {
		return 1.0
	}
	return score / total
}

func fieldOverlap(before, after []string) float64 {
	if len(before) == 0 && len(after) == 0 {
		return 1.0
	}
	beforeSet := make(map[string]bool, len(before))
	for _, s := range before {
		beforeSet[s] = true
	}
	shared := 0
	for _, s := range after {
		if beforeSet[s] {
			shared++
		}
	}
	union := len(beforeSet)
	for _, s := range after {
		if !beforeSet[s] {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(shared) / float64(union)
}

// symbolsInScope resolves scope ("file" or "module") + target into the
// concrete symbol set a snapshot/verify call operates over. "module"
// mirrors internal/relstore.GetModuleSIR's directory-prefix convention.
func (a *Analyzer) symbolsInScope(scope, target string) ([]symbol.Symbol, error) {
	if scope == "file" {
		return a.relStore.SymbolsForFile(target)
	}

	all, err := a.relStore.AllSymbols()
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(target, "/") + "/"
	var out []symbol.Symbol
	for _, sym := range all {
		if strings.HasPrefix(sym.FilePath, prefix) {
			out = append(out, sym)
		}
	}
	return out, nil
}
