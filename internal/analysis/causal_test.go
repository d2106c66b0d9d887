package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/sir"
	"aether/internal/symbol"
)

func TestCausalChain_IncludesChangedDependencyExcludesUnchangedOne(t *testing.T) {
	relStore := openTestRelStore(t)
	graph := graphstore.NewGonumStore()
	t.Cleanup(func() { graph.Close() })

	target := sampleSymbol("pkg.Target", "target.go")
	changedDep := sampleSymbol("pkg.ChangedDep", "changed.go")
	untouchedDep := sampleSymbol("pkg.UntouchedDep", "untouched.go")
	require.NoError(t, relStore.UpsertSymbol(target))
	require.NoError(t, relStore.UpsertSymbol(changedDep))
	require.NoError(t, relStore.UpsertSymbol(untouchedDep))
	require.NoError(t, graph.UpsertSymbolNode(graphstore.NodeInfo{SymbolID: target.ID, QualifiedName: target.QualifiedName, Kind: target.Kind, FilePath: target.FilePath, Language: "go"}))
	require.NoError(t, graph.UpsertSymbolNode(graphstore.NodeInfo{SymbolID: changedDep.ID, QualifiedName: changedDep.QualifiedName, Kind: changedDep.Kind, FilePath: changedDep.FilePath, Language: "go"}))
	require.NoError(t, graph.UpsertSymbolNode(graphstore.NodeInfo{SymbolID: untouchedDep.ID, QualifiedName: untouchedDep.QualifiedName, Kind: untouchedDep.Kind, FilePath: untouchedDep.FilePath, Language: "go"}))
	require.NoError(t, graph.UpsertEdge(target.ID, changedDep.ID, "calls", "target.go"))
	require.NoError(t, graph.UpsertEdge(target.ID, untouchedDep.ID, "calls", "target.go"))

	require.NoError(t, relStore.PutSIR(changedDep.ID, &sir.SIR{Intent: "parses input"}, "r1", `{"intent":"parses input"}`, "c1"))
	require.NoError(t, relStore.PutSIR(changedDep.ID, &sir.SIR{Intent: "parses input and validates schema"}, "r2", `{"intent":"parses input and validates schema"}`, "c2"))
	// untouchedDep never gets a SIR, so it has no history row to attribute a change to.

	a := New(config.DefaultConfig(), relStore, graph, nil, nil, nil, varyingEmbedder{})

	links, err := a.CausalChain(context.Background(), target.ID, 3, 30*24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, links, 1, "only the dependency with recorded SIR history should be evaluated")
	require.Equal(t, changedDep.ID, links[0].SymbolID)
	require.True(t, links[0].Diff.IntentChanged)
	require.Greater(t, links[0].ChangeMagnitude, 0.0)
	require.Equal(t, []symbol.SymbolID{target.ID, changedDep.ID}, links[0].Path)
}

func TestCausalChain_NoDependenciesYieldsNoLinks(t *testing.T) {
	relStore := openTestRelStore(t)
	graph := graphstore.NewGonumStore()
	t.Cleanup(func() { graph.Close() })

	target := sampleSymbol("pkg.Target", "target.go")
	require.NoError(t, relStore.UpsertSymbol(target))
	require.NoError(t, graph.UpsertSymbolNode(graphstore.NodeInfo{SymbolID: target.ID, QualifiedName: target.QualifiedName, Kind: target.Kind, FilePath: target.FilePath, Language: "go"}))

	a := New(config.DefaultConfig(), relStore, graph, nil, nil, nil, nil)
	links, err := a.CausalChain(context.Background(), target.ID, 0, time.Hour, 5)
	require.NoError(t, err)
	require.Empty(t, links, "a target with no dependencies yields no causal links regardless of depth clamping")
}

type varyingEmbedder struct{}

func (varyingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (varyingEmbedder) Provider() string { return "mock" }
func (varyingEmbedder) Model() string    { return "mock-embed" }
