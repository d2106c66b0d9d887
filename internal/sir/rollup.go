package sir

import (
	"sort"
	"strings"
)

// intentConcatThreshold is the leaf count at or below which a rollup's
// intent is a plain concatenation; above it, Summarizer is consulted.
const intentConcatThreshold = 5

// Summarizer produces a single prose intent from several leaf intents, used
// when a rollup has more leaves than intentConcatThreshold. The concrete
// implementation (internal/orchestrator's genSummarizer) reuses the same
// internal/inference SirGenerator used for leaf generation, given the
// joined leaf intents as its prompt — this package
// only depends on the interface, so internal/sir never imports
// internal/inference.
type Summarizer interface {
	Summarize(intents []string) (string, error)
}

// FileRollup is the deterministic rollup of a file's leaf SIRs.
type FileRollup struct {
	SIR
	Level     Level `json:"level"`
	LeafCount int   `json:"leaf_count"`
}

// AggregateFile computes a FileRollup over a file's leaf SIRs: sorted-unique
// union of side_effects, dependencies, and error_modes; intent concatenation
// for five leaves or fewer, else an LLM summary via summarizer; confidence is
// the minimum across leaves. summarizer may be nil when leaves is within
// intentConcatThreshold.
func AggregateFile(leaves []SIR, summarizer Summarizer) (FileRollup, error) {
	if len(leaves) == 0 {
		return FileRollup{Level: LevelFile}, nil
	}

	intent, err := rollupIntent(leafIntents(leaves), summarizer)
	if err != nil {
		return FileRollup{}, err
	}

	return FileRollup{
		SIR: SIR{
			Intent:       intent,
			Inputs:       unionSorted(mapField(leaves, func(s SIR) []string { return s.Inputs })),
			Outputs:      unionSorted(mapField(leaves, func(s SIR) []string { return s.Outputs })),
			SideEffects:  unionSorted(mapField(leaves, func(s SIR) []string { return s.SideEffects })),
			Dependencies: unionSorted(mapField(leaves, func(s SIR) []string { return s.Dependencies })),
			ErrorModes:   unionSorted(mapField(leaves, func(s SIR) []string { return s.ErrorModes })),
			EdgeCases:    unionSorted(mapField(leaves, func(s SIR) []string { return s.EdgeCases })),
			Confidence:   minConfidence(leaves),
		},
		Level:     LevelFile,
		LeafCount: len(leaves),
	}, nil
}

// ModuleRollup is the on-demand deterministic rollup over a directory's
// file SIRs.
type ModuleRollup struct {
	SIR
	Level        Level `json:"level"`
	FilesTotal   int   `json:"files_total"`
	FilesWithSIR int   `json:"files_with_sir"`
}

// AggregateModule computes a ModuleRollup over a directory's file-level
// SIRs. files may contain nil entries for files with no SIR yet; those are
// skipped in the union/confidence computation but still counted toward
// FilesTotal.
func AggregateModule(files []*SIR, summarizer Summarizer) (ModuleRollup, error) {
	var present []SIR
	for _, f := range files {
		if f != nil {
			present = append(present, *f)
		}
	}

	fileRollup, err := AggregateFile(present, summarizer)
	if err != nil {
		return ModuleRollup{}, err
	}

	return ModuleRollup{
		SIR:          fileRollup.SIR,
		Level:        LevelModule,
		FilesTotal:   len(files),
		FilesWithSIR: len(present),
	}, nil
}

func rollupIntent(intents []string, summarizer Summarizer) (string, error) {
	if len(intents) <= intentConcatThreshold {
		return strings.Join(intents, " "), nil
	}
	if summarizer == nil {
		// No summarizer available (e.g. offline aggregation in tests):
		// fall back to concatenation rather than erroring, since a
		// rollup must always produce some intent text.
		return strings.Join(intents, " "), nil
	}
	return summarizer.Summarize(intents)
}

func leafIntents(leaves []SIR) []string {
	out := make([]string, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, l.Intent)
	}
	return out
}

func mapField(leaves []SIR, get func(SIR) []string) []string {
	var out []string
	for _, l := range leaves {
		out = append(out, get(l)...)
	}
	return out
}

func unionSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func minConfidence(leaves []SIR) float64 {
	min := leaves[0].Confidence
	for _, l := range leaves[1:] {
		if l.Confidence < min {
			min = l.Confidence
		}
	}
	return min
}
