package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"aether/internal/config"
	"aether/internal/parser"
	"aether/internal/sir"
)

func TestSnapshot_CapturesOnlySymbolsWithSIR(t *testing.T) {
	relStore := openTestRelStore(t)
	withSIR := sampleSymbol("pkg.WithSIR", "a.go")
	withoutSIR := sampleSymbol("pkg.WithoutSIR", "a.go")
	require.NoError(t, relStore.UpsertSymbol(withSIR))
	require.NoError(t, relStore.UpsertSymbol(withoutSIR))
	require.NoError(t, relStore.PutSIR(withSIR.ID, &sir.SIR{Intent: "reads config"}, "h1", `{"intent":"reads config"}`, "c1"))

	a := New(config.DefaultConfig(), relStore, nil, nil, nil, nil, nil)
	snap, err := a.Snapshot("file", "a.go", "pre-refactor")
	require.NoError(t, err)
	require.Len(t, snap.Symbols, 1)
	require.Equal(t, "h1", snap.Symbols[withSIR.ID.String()])
}

func TestVerify_ClassifiesUnchangedHashAsPreservedWithoutEmbedding(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Stable", "stable.go")
	require.NoError(t, relStore.UpsertSymbol(sym))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "stable behavior"}, "h1", `{"intent":"stable behavior"}`, "c1"))

	a := New(config.DefaultConfig(), relStore, nil, nil, nil, nil, nil)
	snap, err := a.Snapshot("file", "stable.go", "baseline")
	require.NoError(t, err)

	report, err := a.Verify(context.Background(), snap.SnapshotID, false)
	require.NoError(t, err)
	require.Contains(t, report.Preserved, sym.ID)
	require.Empty(t, report.Shifted)
	require.Empty(t, report.Removed)
	require.Empty(t, report.Added)
}

func TestVerify_FlagsMajorShiftAndUntestedEdgeCase(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Drifting", "drifting.go")
	require.NoError(t, relStore.UpsertSymbol(sym))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "parses a config file", EdgeCases: []string{"empty file"}}, "h1", `{"intent":"parses a config file"}`, "c1"))

	a := New(config.DefaultConfig(), relStore, nil, nil, nil, nil, nil)
	snap, err := a.Snapshot("file", "drifting.go", "baseline")
	require.NoError(t, err)

	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{
		Intent:    "streams records to a remote queue over the network",
		EdgeCases: []string{"empty file", "connection timeout"},
	}, "h2", `{"intent":"streams records to a remote queue over the network"}`, "c2"))

	report, err := a.Verify(context.Background(), snap.SnapshotID, false)
	require.NoError(t, err)
	require.Empty(t, report.Preserved)
	require.Len(t, report.Shifted, 1)

	shift := report.Shifted[0]
	require.Equal(t, sym.ID, shift.SymbolID)
	require.Equal(t, IntentShiftedMajor, shift.Classification)
	require.True(t, shift.Diff.IntentChanged)
	require.Contains(t, shift.Diff.EdgeCasesAdded, "connection timeout")
	require.Contains(t, shift.UntestedNewEdgeCases, "connection timeout")
}

func TestVerify_TestedNewEdgeCaseIsNotFlaggedUntested(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Tested", "tested.go")
	require.NoError(t, relStore.UpsertSymbol(sym))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "parses input", EdgeCases: []string{}}, "h1", `{"intent":"parses input"}`, "c1"))

	a := New(config.DefaultConfig(), relStore, nil, nil, nil, nil, nil)
	snap, err := a.Snapshot("file", "tested.go", "baseline")
	require.NoError(t, err)

	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{
		Intent: "parses input defensively", EdgeCases: []string{"malformed utf-8 input"},
	}, "h2", `{"intent":"parses input defensively"}`, "c2"))
	require.NoError(t, relStore.ReplaceTestIntentsForFile("tested_test.go", []parser.TestIntent{
		{FilePath: "tested_test.go", TestName: "TestMalformedUTF8Input", IntentText: "covers malformed utf-8 input", Language: "go", SymbolID: &sym.ID},
	}))

	report, err := a.Verify(context.Background(), snap.SnapshotID, false)
	require.NoError(t, err)
	require.Len(t, report.Shifted, 1)
	require.Empty(t, report.Shifted[0].UntestedNewEdgeCases)
}

func TestVerify_ReportsRemovedAndAddedSymbols(t *testing.T) {
	relStore := openTestRelStore(t)
	removed := sampleSymbol("pkg.Removed", "scope.go")
	require.NoError(t, relStore.UpsertSymbol(removed))
	require.NoError(t, relStore.PutSIR(removed.ID, &sir.SIR{Intent: "will be deleted"}, "h1", `{"intent":"will be deleted"}`, "c1"))

	a := New(config.DefaultConfig(), relStore, nil, nil, nil, nil, nil)
	snap, err := a.Snapshot("file", "scope.go", "baseline")
	require.NoError(t, err)

	require.NoError(t, relStore.DeleteMissingSymbolsForFile("scope.go", nil))
	added := sampleSymbol("pkg.Added", "scope.go")
	require.NoError(t, relStore.UpsertSymbol(added))

	report, err := a.Verify(context.Background(), snap.SnapshotID, false)
	require.NoError(t, err)
	require.Contains(t, report.Removed, removed.ID)
	require.Contains(t, report.Added, added.ID)
}

func TestVerify_UnknownSnapshotReturnsNoBaselineError(t *testing.T) {
	relStore := openTestRelStore(t)
	a := New(config.DefaultConfig(), relStore, nil, nil, nil, nil, nil)
	_, err := a.Verify(context.Background(), "does-not-exist", false)
	require.Error(t, err)
}
