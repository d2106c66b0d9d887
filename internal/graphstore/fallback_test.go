package graphstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"aether/internal/symbol"
)

func mkNode(qualifiedName string) NodeInfo {
	sym := symbol.Symbol{
		Language:             "go",
		FilePath:             "pkg/thing.go",
		QualifiedName:        qualifiedName,
		Kind:                 symbol.KindFunction,
		SignatureFingerprint: "func()",
	}.WithID()
	return NodeInfo{SymbolID: sym.ID, QualifiedName: qualifiedName, Kind: symbol.KindFunction, FilePath: "pkg/thing.go", Language: "go"}
}

func TestGonumStore_CallersAndDependencies(t *testing.T) {
	g := NewGonumStore()
	a, b, c := mkNode("pkg.A"), mkNode("pkg.B"), mkNode("pkg.C")
	require.NoError(t, g.UpsertSymbolNode(a))
	require.NoError(t, g.UpsertSymbolNode(b))
	require.NoError(t, g.UpsertSymbolNode(c))
	require.NoError(t, g.UpsertEdge(a.SymbolID, b.SymbolID, "calls", "pkg/thing.go"))
	require.NoError(t, g.UpsertEdge(b.SymbolID, c.SymbolID, "calls", "pkg/thing.go"))

	deps, err := g.Dependencies(a.SymbolID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, "pkg.B", deps[0].QualifiedName)

	callers, err := g.Callers("pkg.B")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	require.Equal(t, "pkg.A", callers[0].QualifiedName)
}

func TestGonumStore_CallChain_ClampsDepthAndDedupsOnVisit(t *testing.T) {
	g := NewGonumStore()
	a, b, c, d := mkNode("pkg.A"), mkNode("pkg.B"), mkNode("pkg.C"), mkNode("pkg.D")
	for _, n := range []NodeInfo{a, b, c, d} {
		require.NoError(t, g.UpsertSymbolNode(n))
	}
	require.NoError(t, g.UpsertEdge(a.SymbolID, b.SymbolID, "calls", "f.go"))
	require.NoError(t, g.UpsertEdge(a.SymbolID, c.SymbolID, "calls", "f.go"))
	require.NoError(t, g.UpsertEdge(b.SymbolID, d.SymbolID, "calls", "f.go"))
	require.NoError(t, g.UpsertEdge(c.SymbolID, d.SymbolID, "calls", "f.go"))

	chain, err := g.CallChain(a.SymbolID, 2)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Len(t, chain[0], 2) // [B, C]
	require.Len(t, chain[1], 1) // [D] — reached via both B and C, counted once

	chainClamped, err := g.CallChain(a.SymbolID, 0)
	require.NoError(t, err)
	require.Len(t, chainClamped, 1, "max_depth=0 clamps to 1")
}

func TestGonumStore_DeleteEdgesForFile(t *testing.T) {
	g := NewGonumStore()
	a, b := mkNode("pkg.A"), mkNode("pkg.B")
	require.NoError(t, g.UpsertSymbolNode(a))
	require.NoError(t, g.UpsertSymbolNode(b))
	require.NoError(t, g.UpsertEdge(a.SymbolID, b.SymbolID, "calls", "f.go"))

	require.NoError(t, g.DeleteEdgesForFile("f.go"))

	deps, err := g.Dependencies(a.SymbolID)
	require.NoError(t, err)
	require.Empty(t, deps)
}

func TestGonumStore_PageRankAndSCC(t *testing.T) {
	g := NewGonumStore()
	a, b, c := mkNode("pkg.A"), mkNode("pkg.B"), mkNode("pkg.C")
	for _, n := range []NodeInfo{a, b, c} {
		require.NoError(t, g.UpsertSymbolNode(n))
	}
	require.NoError(t, g.UpsertEdge(a.SymbolID, b.SymbolID, "calls", "f.go"))
	require.NoError(t, g.UpsertEdge(b.SymbolID, c.SymbolID, "calls", "f.go"))
	require.NoError(t, g.UpsertEdge(c.SymbolID, a.SymbolID, "calls", "f.go"))

	ranks, err := g.PageRank()
	require.NoError(t, err)
	require.Len(t, ranks, 3)

	components, err := g.SCC()
	require.NoError(t, err)
	require.Len(t, components, 1, "a 3-cycle is one strongly connected component")
	require.Len(t, components[0], 3)
}

func TestGonumStore_ConnectedComponents(t *testing.T) {
	g := NewGonumStore()
	a, b, isolated := mkNode("pkg.A"), mkNode("pkg.B"), mkNode("pkg.Isolated")
	for _, n := range []NodeInfo{a, b, isolated} {
		require.NoError(t, g.UpsertSymbolNode(n))
	}
	require.NoError(t, g.UpsertEdge(a.SymbolID, b.SymbolID, "calls", "f.go"))

	components, err := g.ConnectedComponents()
	require.NoError(t, err)
	require.Len(t, components, 2)
}
