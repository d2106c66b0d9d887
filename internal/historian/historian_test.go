package historian

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"aether/internal/aethererr"
	"aether/internal/relstore"
	"aether/internal/sir"
	"aether/internal/symbol"
)

func openTestRelStore(t *testing.T) *relstore.Store {
	t.Helper()
	st, err := relstore.Open(filepath.Join(t.TempDir(), "aether.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleSymbol(qualifiedName, filePath string) symbol.Symbol {
	sym := symbol.Symbol{
		Language: "go", FilePath: filePath, QualifiedName: qualifiedName,
		Kind: symbol.KindFunction, SignatureFingerprint: "func()",
	}
	return sym.WithID()
}

func TestTimeline_OrdersVersionsAscendingByCreatedAt(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Evolving", "evolving.go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v1"}, "h1", `{"intent":"v1"}`, "c1"))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v2"}, "h2", `{"intent":"v2"}`, "c2"))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v3"}, "h3", `{"intent":"v3"}`, "c3"))

	h := New(relStore)
	timeline, err := h.Timeline(sym.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	require.Equal(t, "h1", timeline[0].Hash)
	require.Equal(t, "h2", timeline[1].Hash)
	require.Equal(t, "h3", timeline[2].Hash)
}

func TestPutSIR_IdenticalHashDoesNotInflateHistory(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Stable", "stable.go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v1"}, "h1", `{"intent":"v1"}`, "c1"))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v1"}, "h1", `{"intent":"v1"}`, "c2"))

	h := New(relStore)
	timeline, err := h.Timeline(sym.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1, "regenerating an identical SIR must not append a new history row")
}

func TestWhyChanged_NoBaselineOnFirstVersion(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Fresh", "fresh.go")
	require.NoError(t, relStore.UpsertSymbol(sym))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v1"}, "h1", `{"intent":"v1"}`, "c1"))

	h := New(relStore)
	_, err := h.WhyChanged(sym.ID)
	require.ErrorIs(t, err, aethererr.ErrNoBaseline)
}

func TestWhyChanged_DiffsTwoMostRecentVersions(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Changing", "changing.go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{
		Intent: "reads a local file", Dependencies: []string{"os"},
	}, "h1", `{"intent":"reads a local file"}`, "c1"))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{
		Intent: "reads a file over the network", Dependencies: []string{"net/http"},
	}, "h2", `{"intent":"reads a file over the network"}`, "c2"))

	h := New(relStore)
	report, err := h.WhyChanged(sym.ID)
	require.NoError(t, err)
	require.Equal(t, "h1", report.FromHash)
	require.Equal(t, "c1", report.FromCommit)
	require.Equal(t, "h2", report.ToHash)
	require.Equal(t, "c2", report.ToCommit)
	require.True(t, report.Diff.IntentChanged)
	require.Contains(t, report.Diff.DependenciesAdded, "net/http")
	require.Contains(t, report.Diff.DependenciesRemoved, "os")
}

func TestCompareVersions_UnknownHashReturnsNoBaseline(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Versioned", "versioned.go")
	require.NoError(t, relStore.UpsertSymbol(sym))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v1"}, "h1", `{"intent":"v1"}`, "c1"))

	h := New(relStore)
	_, err := h.CompareVersions(sym.ID, "h1", "does-not-exist")
	require.ErrorIs(t, err, aethererr.ErrNoBaseline)
}

func TestCompareVersions_DiffsArbitraryPairRegardlessOfOrder(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Spanning", "spanning.go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v1", EdgeCases: []string{"empty input"}}, "h1", `{"intent":"v1"}`, "c1"))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v2", EdgeCases: []string{"empty input"}}, "h2", `{"intent":"v2"}`, "c2"))
	require.NoError(t, relStore.PutSIR(sym.ID, &sir.SIR{Intent: "v3", EdgeCases: []string{"empty input", "nil pointer"}}, "h3", `{"intent":"v3"}`, "c3"))

	h := New(relStore)
	report, err := h.CompareVersions(sym.ID, "h1", "h3")
	require.NoError(t, err)
	require.Equal(t, "h1", report.FromHash)
	require.Equal(t, "h3", report.ToHash)
	require.Contains(t, report.Diff.EdgeCasesAdded, "nil pointer")
}
