package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/inference"
	"aether/internal/parser"
	"aether/internal/relstore"
	"aether/internal/symbol"
	"aether/internal/vectorstore"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	workspaceDir := t.TempDir()

	relStore, err := relstore.Open(filepath.Join(workspaceDir, "meta.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { relStore.Close() })

	graphStore := graphstore.NewGonumStore()
	t.Cleanup(func() { graphStore.Close() })

	vecStore, err := vectorstore.OpenSQLiteStore(filepath.Join(workspaceDir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { vecStore.Close() })

	sirGen := inference.NewRetryingSirGenerator(inference.NewMockSirGenerator(), 3, 0, 0)
	embedGen := inference.NewMockEmbeddingGenerator(8)

	cfg := config.DefaultConfig()
	registry := parser.DefaultRegistry()

	return New(cfg, relStore, graphStore, vecStore, registry, sirGen, embedGen, workspaceDir), workspaceDir
}

const sampleGoSource = `package sample

func Greet(name string) string {
	return format(name)
}

func format(name string) string {
	return "hello " + name
}
`

func TestIndexFile_PopulatesSymbolsSIRAndEmbeddings(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result, err := o.IndexFile(context.Background(), "sample.go", []byte(sampleGoSource))
	require.NoError(t, err)
	require.Equal(t, 2, result.SymbolsAdded)
	require.Equal(t, 2, result.SIRGenerated)
	require.Zero(t, result.SIRFailed)

	symbols, err := o.relStore.SymbolsForFile("sample.go")
	require.NoError(t, err)
	require.Len(t, symbols, 2)

	for _, sym := range symbols {
		leaf, err := o.relStore.GetLeafSIR(sym.ID)
		require.NoError(t, err)
		require.NotNil(t, leaf)
		require.Equal(t, "ok", leaf.Status)

		matches, err := o.vectorStore.SearchNearest(make([]float32, 8), "mock", "mock-hash-embed", 10)
		require.NoError(t, err)
		require.NotEmpty(t, matches)
	}
}

func TestIndexFile_ReindexRemovesDeletedSymbols(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.IndexFile(ctx, "sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	trimmed := `package sample

func Greet(name string) string {
	return "hello " + name
}
`
	result, err := o.IndexFile(ctx, "sample.go", []byte(trimmed))
	require.NoError(t, err)
	require.Equal(t, 1, result.SymbolsRemoved)

	symbols, err := o.relStore.SymbolsForFile("sample.go")
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	require.Equal(t, "sample.Greet", symbols[0].QualifiedName)
}

func TestIndexFile_ResolvesCallEdgeIntoGraphStore(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.IndexFile(ctx, "sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	symbols, err := o.relStore.SymbolsForFile("sample.go")
	require.NoError(t, err)

	greetID := findByName(t, symbols, "sample.Greet")
	formatID := findByName(t, symbols, "sample.format")

	deps, err := o.graphStore.Dependencies(greetID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, formatID, deps[0].SymbolID)

	callers, err := o.graphStore.Callers("sample.format")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	require.Equal(t, greetID, callers[0].SymbolID)
}

func TestIndexFile_UnregisteredExtensionFailsWithoutDisturbingOtherFiles(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.IndexFile(ctx, "sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	_, err = o.IndexFile(ctx, "sample.unknownext", []byte("garbage"))
	require.Error(t, err)

	symbols, err := o.relStore.SymbolsForFile("sample.go")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
}

func TestIndexPaths_BoundedConcurrencyIndexesAllFiles(t *testing.T) {
	o, workspaceDir := newTestOrchestrator(t)

	for i := 0; i < 5; i++ {
		name := filepath.Join(workspaceDir, "file"+string(rune('a'+i))+".go")
		require.NoError(t, os.WriteFile(name, []byte(sampleGoSource), 0o644))
	}

	paths := []string{"filea.go", "fileb.go", "filec.go", "filed.go", "filee.go"}
	results := o.IndexPaths(context.Background(), paths)
	require.Len(t, results, len(paths))
}

func TestResolveImportHover_RelativeTypeScriptImport(t *testing.T) {
	o, workspaceDir := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(workspaceDir, "lib"), 0o755))
	targetSrc := []byte(`export function helper(x: number): number { return x + 1; }`)
	require.NoError(t, os.WriteFile(filepath.Join(workspaceDir, "lib", "helper.ts"), targetSrc, 0o644))

	_, err := o.IndexFile(ctx, "lib/helper.ts", targetSrc)
	require.NoError(t, err)

	rollup, err := o.ResolveImportHover("lib/main.ts", "./helper", "typescript")
	require.NoError(t, err)
	require.NotNil(t, rollup)
}

func TestResolveImportHover_UnresolvableImportFallsThroughWithoutError(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	rollup, err := o.ResolveImportHover("lib/main.ts", "some-package", "typescript")
	require.NoError(t, err)
	require.Nil(t, rollup)
}

func findByName(t *testing.T, symbols []symbol.Symbol, name string) symbol.SymbolID {
	t.Helper()
	for _, s := range symbols {
		if s.QualifiedName == name {
			return s.ID
		}
	}
	t.Fatalf("symbol %s not found", name)
	return symbol.SymbolID{}
}
