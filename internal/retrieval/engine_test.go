package retrieval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/inference"
	"aether/internal/relstore"
	"aether/internal/sir"
	"aether/internal/symbol"
	"aether/internal/vectorstore"
)

func openTestRelStore(t *testing.T) *relstore.Store {
	t.Helper()
	st, err := relstore.Open(filepath.Join(t.TempDir(), "aether.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func openTestVectorStore(t *testing.T) vectorstore.Store {
	t.Helper()
	st, err := vectorstore.OpenSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestEngine(t *testing.T, relStore *relstore.Store, vecStore vectorstore.Store, graphStore graphstore.Store, embedGen inference.EmbeddingGenerator) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	return New(cfg, relStore, graphStore, vecStore, embedGen, nil)
}

func sampleSymbol(qualifiedName, filePath, language string) symbol.Symbol {
	sym := symbol.Symbol{
		Language:             language,
		FilePath:             filePath,
		QualifiedName:        qualifiedName,
		Kind:                 symbol.KindFunction,
		SignatureFingerprint: "func()",
	}
	return sym.WithID()
}

func putSIR(t *testing.T, st *relstore.Store, id symbol.SymbolID, intent string) {
	t.Helper()
	record := &sir.SIR{
		Intent:       intent,
		Inputs:       []string{},
		Outputs:      []string{},
		SideEffects:  []string{},
		Dependencies: []string{},
		ErrorModes:   []string{},
		EdgeCases:    []string{},
		Confidence:   0.9,
	}
	canonical, err := sir.Canonicalize(record)
	require.NoError(t, err)
	hash, err := sir.Hash(record)
	require.NoError(t, err)
	require.NoError(t, st.PutSIR(id, record, hash, string(canonical), "commit1"))
}

// fixedVectorEmbedder returns the same vector for every text, letting tests
// control exactly what the "query" embedding looks like without depending
// on the mock generator's text-derived vectors.
type fixedVectorEmbedder struct {
	vector []float32
}

func (f fixedVectorEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}
func (f fixedVectorEmbedder) Dimensions() int  { return len(f.vector) }
func (f fixedVectorEmbedder) Provider() string { return "mock" }
func (f fixedVectorEmbedder) Model() string    { return "mock-fixed" }

func TestLexicalSearch_RanksAndResolvesSymbols(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.DoThing", "pkg/thing.go", "go")
	require.NoError(t, relStore.UpsertSymbol(sym))
	putSIR(t, relStore, sym.ID, "does the thing")

	e := newTestEngine(t, relStore, nil, nil, nil)
	resp, err := e.LexicalSearch("DoThing", 10)
	require.NoError(t, err)
	require.Equal(t, ModeLexical, resp.ModeRequested)
	require.Equal(t, ModeLexical, resp.ModeUsed)
	require.Empty(t, resp.FallbackReason)
	require.Len(t, resp.Results, 1)
	require.Equal(t, sym.ID.String(), resp.Results[0].ID)
	require.Equal(t, "pkg.DoThing", resp.Results[0].Title)
	require.Equal(t, "does the thing", resp.Results[0].Snippet)
}

func TestLexicalSearch_BumpsAccessCountOnce(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.DoThing", "pkg/thing.go", "go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	e := newTestEngine(t, relStore, nil, nil, nil)
	_, err := e.LexicalSearch("DoThing", 10)
	require.NoError(t, err)
	_, err = e.LexicalSearch("DoThing", 10)
	require.NoError(t, err)

	got, err := relStore.GetSymbol(sym.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AccessCount, "second search within the debounce window must not bump access again")
}

func TestSemanticSearch_FiltersByPerLanguageThreshold(t *testing.T) {
	relStore := openTestRelStore(t)
	vecStore := openTestVectorStore(t)

	match := sampleSymbol("pkg.Match", "pkg/match.go", "go")
	farOff := sampleSymbol("pkg.FarOff", "pkg/far.go", "go")
	require.NoError(t, relStore.UpsertSymbol(match))
	require.NoError(t, relStore.UpsertSymbol(farOff))

	embedder := fixedVectorEmbedder{vector: []float32{1, 0, 0}}
	require.NoError(t, vecStore.Upsert(match.ID.String(), []float32{1, 0, 0}, embedder.Provider(), embedder.Model()))
	require.NoError(t, vecStore.Upsert(farOff.ID.String(), []float32{0, 1, 0}, embedder.Provider(), embedder.Model()))

	e := newTestEngine(t, relStore, vecStore, nil, embedder)
	resp, err := e.SemanticSearch(context.Background(), "anything", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1, "only the near-identical vector should clear the default 0.6 threshold")
	require.Equal(t, match.ID.String(), resp.Results[0].ID)
}

func TestHybridSearch_FusesLexicalAndSemanticRankings(t *testing.T) {
	relStore := openTestRelStore(t)
	vecStore := openTestVectorStore(t)

	lexOnly := sampleSymbol("pkg.LexOnly", "pkg/lex.go", "go")
	both := sampleSymbol("pkg.Both", "pkg/both.go", "go")
	require.NoError(t, relStore.UpsertSymbol(lexOnly))
	require.NoError(t, relStore.UpsertSymbol(both))

	embedder := fixedVectorEmbedder{vector: []float32{1, 0, 0}}
	require.NoError(t, vecStore.Upsert(both.ID.String(), []float32{1, 0, 0}, embedder.Provider(), embedder.Model()))

	e := newTestEngine(t, relStore, vecStore, nil, embedder)
	resp, err := e.HybridSearch(context.Background(), "Both", 10)
	require.NoError(t, err)
	require.Equal(t, ModeHybrid, resp.ModeUsed)
	require.Empty(t, resp.FallbackReason)

	ids := make(map[string]bool)
	for _, r := range resp.Results {
		ids[r.ID] = true
	}
	require.True(t, ids[both.ID.String()], "symbol found by both lexical and semantic should be present")
	require.Equal(t, both.ID.String(), resp.Results[0].ID, "a hit present in both ranked lists should fuse to the top")
}

func TestHybridSearch_RerankerFailureDegradesCleanlyWithFallbackReason(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.DoThing", "pkg/thing.go", "go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	cfg := config.DefaultConfig()
	cfg.Search.Reranker = "api"
	e := &Engine{
		relStore:    relStore,
		vectorStore: nil,
		cfg:         cfg,
		thresholds:  newThresholdCache(),
		debounce:    make(map[string]time.Time),
		reranker:    failingReranker{},
	}

	resp, err := e.HybridSearch(context.Background(), "DoThing", 10)
	require.NoError(t, err)
	require.NotEmpty(t, resp.FallbackReason)
	require.Contains(t, resp.FallbackReason, "reranker_failed")
	require.Len(t, resp.Results, 1, "fused results must still be returned despite the reranker failure")
}

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]float64, error) {
	return nil, errInjectedRerankFailure
}

var errInjectedRerankFailure = errRerankInjected("injected reranker failure")

type errRerankInjected string

func (e errRerankInjected) Error() string { return string(e) }

func TestAsk_FusesAcrossKindsAndAppliesGraphCoupledFiles(t *testing.T) {
	relStore := openTestRelStore(t)
	graphStore := graphstore.NewGonumStore()

	top := sampleSymbol("pkg.Top", "pkg/top.go", "go")
	dep := sampleSymbol("pkg.Dep", "pkg/dep.go", "go")
	require.NoError(t, relStore.UpsertSymbol(top))
	require.NoError(t, relStore.UpsertSymbol(dep))

	require.NoError(t, graphStore.UpsertSymbolNode(graphstore.NodeInfo{
		SymbolID: top.ID, QualifiedName: top.QualifiedName, Kind: top.Kind, FilePath: top.FilePath, Language: top.Language,
	}))
	require.NoError(t, graphStore.UpsertSymbolNode(graphstore.NodeInfo{
		SymbolID: dep.ID, QualifiedName: dep.QualifiedName, Kind: dep.Kind, FilePath: dep.FilePath, Language: dep.Language,
	}))
	require.NoError(t, graphStore.UpsertEdge(top.ID, dep.ID, "call", top.FilePath))

	noteID, _, err := relStore.UpsertNote(relstore.NoteRecord{
		NoteID:      "note-1",
		Content:     "remember pkg.Top needs review",
		ContentHash: "hash-1",
		SourceType:  "manual",
		Tags:        []string{"review"},
	})
	require.NoError(t, err)
	require.Equal(t, "note-1", noteID)

	e := newTestEngine(t, relStore, nil, graphStore, nil)
	resp, err := e.Ask(context.Background(), "Top", 20)
	require.NoError(t, err)
	require.Equal(t, ModeAsk, resp.ModeUsed)

	var sawSymbol, sawNote, sawFile bool
	for _, r := range resp.Results {
		switch r.Kind {
		case KindSymbol:
			sawSymbol = true
		case KindNote:
			sawNote = true
		case KindFile:
			sawFile = true
		}
	}
	require.True(t, sawSymbol, "ask should surface the matching symbol")
	require.True(t, sawNote, "ask should surface the matching note")
	require.True(t, sawFile, "ask should surface the coupled dependency file via the graph lookup")
}

func TestAsk_DoesNotDoubleApplyRecencyAccessBoost(t *testing.T) {
	relStore := openTestRelStore(t)
	sym := sampleSymbol("pkg.Solo", "pkg/solo.go", "go")
	require.NoError(t, relStore.UpsertSymbol(sym))

	e := newTestEngine(t, relStore, nil, nil, nil)
	raw, err := e.fusedSymbolResults(context.Background(), "Solo", 10, false)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	resp, err := e.Ask(context.Background(), "Solo", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	// boostedScore with AccessCount 0 and no LastAccessedAt is a no-op
	// multiplier of 1, so a single fresh symbol's score from Ask must
	// equal its raw fused score (1/61: rank 1 in a single ranked list on
	// both sides) exactly. With zero access history a second boost would
	// also leave the score unchanged.
	require.InDelta(t, raw[0].Score, resp.Results[0].Score, 1e-9)
}

func TestFuseRRF_CombinesRankedListsAndBreaksTiesByID(t *testing.T) {
	a := rankedList{"x", "y", "z"}
	b := rankedList{"y", "x"}

	fused := fuseRRF(a, b)
	require.InDelta(t, 1.0/61+1.0/62, fused["x"], 1e-9)
	require.InDelta(t, 1.0/62+1.0/61, fused["y"], 1e-9)
	require.InDelta(t, 1.0/63, fused["z"], 1e-9)

	ordered := sortByScoreDesc(fused)
	require.Equal(t, []string{"x", "y", "z"}, ordered)
}

func TestBoostedScore_AppliesRecencyAndAccessFactors(t *testing.T) {
	now := time.Now()
	recent := now
	boosted := boostedScore(1.0, 99, &recent, now)
	require.Greater(t, boosted, 1.0, "fresh, frequently accessed entity should be boosted above its raw score")

	old := now.Add(-60 * 24 * time.Hour)
	unboosted := boostedScore(1.0, 0, &old, now)
	require.InDelta(t, 1.0, unboosted, 1e-9, "an entity older than the recency window with no accesses gets no boost")
}

func TestTestIntentSearch_NoMatchReturnsEmpty(t *testing.T) {
	relStore := openTestRelStore(t)
	require.NoError(t, relStore.ReplaceTestIntentsForFile("pkg/thing_test.go", nil))

	e := newTestEngine(t, relStore, nil, nil, nil)
	resp, err := e.testIntentSearch("nonexistent", 10)
	require.NoError(t, err)
	require.Empty(t, resp)
}

func TestThresholdCache_ClampsAndFallsBackToConfiguredDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.Thresholds.PerLanguage = map[string]float64{"rust": 0.8}
	relStore := openTestRelStore(t)
	e := New(cfg, relStore, nil, nil, nil, nil)

	require.Equal(t, 0.8, e.configuredThreshold("rust"))
	require.Equal(t, cfg.Search.Thresholds.Default, e.configuredThreshold("go"))

	require.Equal(t, 0.3, clampThreshold(0.1))
	require.Equal(t, 0.95, clampThreshold(0.99))
	require.Equal(t, 0.7, clampThreshold(0.7))
}
