// Package historian implements AETHER's change-history layer (C12): a
// thin read side over the sir_history table internal/relstore.Store.PutSIR
// already appends to on every hash-changing write. Timeline queries return
// history ascending by created_at; "why changed" queries diff two
// selected versions field by field and report commit linkage when the
// indexing pipeline had a version-control reader available at write time.
package historian

import (
	"time"

	"aether/internal/aethererr"
	"aether/internal/relstore"
	"aether/internal/sir"
	"aether/internal/symbol"
)

// Historian is the shared handle for timeline and why-changed queries.
type Historian struct {
	relStore *relstore.Store
}

// New builds a Historian over an already-open relational store.
func New(relStore *relstore.Store) *Historian {
	return &Historian{relStore: relStore}
}

// Timeline returns every historical SIR version for symbolID, ascending
// by created_at, as internal/relstore.Store.SIRHistoryForSymbol already
// orders them.
func (h *Historian) Timeline(symbolID symbol.SymbolID) ([]relstore.SIRHistoryEntry, error) {
	return h.relStore.SIRHistoryForSymbol(symbolID)
}

// FieldDiff is the field-level comparison behind one "why changed" query.
type FieldDiff struct {
	IntentChanged       bool
	IntentBefore        string
	IntentAfter         string
	InputsAdded         []string
	InputsRemoved       []string
	OutputsAdded        []string
	OutputsRemoved      []string
	SideEffectsAdded    []string
	SideEffectsRemoved  []string
	DependenciesAdded   []string
	DependenciesRemoved []string
	ErrorModesAdded     []string
	ErrorModesRemoved   []string
	EdgeCasesAdded      []string
	EdgeCasesRemoved    []string
}

// ChangeReport is one "why changed" query's full answer: the two versions
// compared, their commit linkage if known, and the field diff between
// them.
type ChangeReport struct {
	SymbolID   symbol.SymbolID
	FromHash   string
	FromCommit string
	FromAt     time.Time
	ToHash     string
	ToCommit   string
	ToAt       time.Time
	Diff       FieldDiff
}

// WhyChanged compares the two most recent SIR versions for symbolID — the
// common "what just changed" query. Returns the aethererr.ErrNoBaseline
// sentinel error (matchable with errors.Is) if fewer than two versions
// exist: a symbol on its first SIR has no prior version to explain a
// change against, and no ChangeReport is produced for it.
func (h *Historian) WhyChanged(symbolID symbol.SymbolID) (ChangeReport, error) {
	history, err := h.relStore.SIRHistoryForSymbol(symbolID)
	if err != nil {
		return ChangeReport{}, err
	}
	if len(history) < 2 {
		return ChangeReport{}, aethererr.ErrNoBaseline
	}
	return buildChangeReport(symbolID, history[len(history)-2], history[len(history)-1]), nil
}

// CompareVersions diffs two explicit SIR versions of symbolID, identified
// by their sir_hash, regardless of which one is chronologically earlier.
// Returns aethererr.ErrNoBaseline if either hash is absent from history.
func (h *Historian) CompareVersions(symbolID symbol.SymbolID, fromHash, toHash string) (ChangeReport, error) {
	history, err := h.relStore.SIRHistoryForSymbol(symbolID)
	if err != nil {
		return ChangeReport{}, err
	}

	var from, to *relstore.SIRHistoryEntry
	for i := range history {
		if history[i].Hash == fromHash {
			from = &history[i]
		}
		if history[i].Hash == toHash {
			to = &history[i]
		}
	}
	if from == nil || to == nil {
		return ChangeReport{}, aethererr.ErrNoBaseline
	}
	return buildChangeReport(symbolID, *from, *to), nil
}

func buildChangeReport(symbolID symbol.SymbolID, from, to relstore.SIRHistoryEntry) ChangeReport {
	return ChangeReport{
		SymbolID:   symbolID,
		FromHash:   from.Hash, FromCommit: from.CommitHash, FromAt: from.CreatedAt,
		ToHash: to.Hash, ToCommit: to.CommitHash, ToAt: to.CreatedAt,
		Diff: diffFields(from.SIR, to.SIR),
	}
}

func diffFields(before, after sir.SIR) FieldDiff {
	return FieldDiff{
		IntentChanged: before.Intent != after.Intent,
		IntentBefore:  before.Intent, IntentAfter: after.Intent,
		InputsAdded: added(before.Inputs, after.Inputs), InputsRemoved: added(after.Inputs, before.Inputs),
		OutputsAdded: added(before.Outputs, after.Outputs), OutputsRemoved: added(after.Outputs, before.Outputs),
		SideEffectsAdded:    added(before.SideEffects, after.SideEffects),
		SideEffectsRemoved:  added(after.SideEffects, before.SideEffects),
		DependenciesAdded:   added(before.Dependencies, after.Dependencies),
		DependenciesRemoved: added(after.Dependencies, before.Dependencies),
		ErrorModesAdded:     added(before.ErrorModes, after.ErrorModes),
		ErrorModesRemoved:   added(after.ErrorModes, before.ErrorModes),
		EdgeCasesAdded:      added(before.EdgeCases, after.EdgeCases),
		EdgeCasesRemoved:    added(after.EdgeCases, before.EdgeCases),
	}
}

// added returns every element of to not present in from, used both
// directions (with args swapped) to get an added/removed pair from one
// helper.
func added(from, to []string) []string {
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
