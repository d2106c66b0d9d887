// Package analysis implements AETHER's codebase-analysis surface: temporal
// file coupling, semantic drift, causal change chains, graph-health risk,
// and intent snapshot/verify. All five read the relational, graph, and
// vector stores the indexing pipeline already populates; none mutate
// symbols or SIR.
package analysis

import (
	"context"
	"math"
	"sync"

	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/memory"
	"aether/internal/relstore"
	"aether/internal/sir"
	"aether/internal/symbol"
	"aether/internal/vcsreader"
	"aether/internal/vectorstore"
)

// VCSWalker is the subset of internal/vcsreader.Reader the coupling miner
// and drift analysis need. Optional: a nil VCSWalker makes MineCoupling a
// no-op, letting analysis run (against whatever coupling data was mined in
// a prior run) in a workspace that isn't a git checkout.
type VCSWalker interface {
	Head() (string, error)
	WalkBackward(maxCommits int, stopAtHash string, visit func(vcsreader.Commit) error) error
}

// EmbeddingGenerator is the subset of inference.EmbeddingGenerator drift
// detection and intent verify need, to re-embed a historical SIR's intent
// text for comparison against a symbol's current embedding (the vector
// store only retains each symbol's latest embedding, not a version
// history, so reconstructing a past point in semantic space means
// re-running the same embedder over the archived text).
type EmbeddingGenerator interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Provider() string
	Model() string
}

// SirGenerator is the subset of inference.RetryingSirGenerator that intent
// verify's optional regenerate_sir behavior needs: producing a fresh SIR
// for a symbol whose leaf is stale, the same call the indexing pipeline
// makes for a changed symbol.
type SirGenerator interface {
	GenerateValidated(ctx context.Context, symbolText, surroundingContext string) (*sir.SIR, error)
}

// Analyzer is the shared handle all five analysis sub-components hang off
// of, composing exactly the collaborators each needs.
type Analyzer struct {
	cfg         *config.Config
	relStore    *relstore.Store
	graphStore  graphstore.Store
	vectorStore vectorstore.Store
	vcs         VCSWalker
	memoryEng   *memory.Engine
	embedGen    EmbeddingGenerator

	sirGen       SirGenerator
	workspaceDir string

	embedMu    sync.Mutex
	embedIndex map[symbol.SymbolID][]float32
	embedReady bool
}

// New builds an Analyzer. vcs may be nil (disables coupling mining);
// memoryEng may be nil (disables drift-acknowledge auto-notes); embedGen
// may be nil (disables re-embedding historical SIR text for drift/intent
// comparisons, falling back to textual diffing only).
func New(cfg *config.Config, relStore *relstore.Store, graphStore graphstore.Store, vectorStore vectorstore.Store, vcs VCSWalker, memoryEng *memory.Engine, embedGen EmbeddingGenerator) *Analyzer {
	return &Analyzer{
		cfg:         cfg,
		relStore:    relStore,
		graphStore:  graphStore,
		vectorStore: vectorStore,
		vcs:         vcs,
		memoryEng:   memoryEng,
		embedGen:    embedGen,
	}
}

// WithSIRGenerator wires an inference adapter and the workspace root into
// the Analyzer, so Verify's regenerate_sir option can regenerate a stale
// leaf SIR before scoring instead of silently ignoring the flag. Without
// this call, sirGen stays nil and regenerate_sir is a no-op: verify falls
// back to whatever SIR the indexing pipeline already produced.
func (a *Analyzer) WithSIRGenerator(gen SirGenerator, workspaceDir string) *Analyzer {
	a.sirGen = gen
	a.workspaceDir = workspaceDir
	return a
}

// ensureEmbeddingIndex lazily loads every stored symbol embedding into an
// in-process map, keyed by symbol_id, used by the semantic coupling signal
// and drift detection's similarity checks. Loaded once per Analyzer
// lifetime: callers that need a fresher view construct a new Analyzer,
// matching the orchestrator's per-run lifecycle — analysis runs are
// point-in-time, not continuously streaming.
func (a *Analyzer) ensureEmbeddingIndex() (map[symbol.SymbolID][]float32, error) {
	a.embedMu.Lock()
	defer a.embedMu.Unlock()
	if a.embedReady {
		return a.embedIndex, nil
	}
	index := make(map[symbol.SymbolID][]float32)
	if a.vectorStore != nil && a.cfg != nil {
		records, err := a.vectorStore.AllRecords(a.cfg.Embeddings.Provider, a.cfg.Embeddings.Model)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			id, parseErr := symbol.ParseSymbolID(rec.ID)
			if parseErr != nil {
				continue // note/non-symbol vectors share the partition; skip what doesn't parse
			}
			index[id] = rec.Vector
		}
	}
	a.embedIndex = index
	a.embedReady = true
	return index, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
