// Package retrieval answers lexical, semantic, hybrid, and unified
// cross-kind queries over everything the orchestrator has indexed:
// symbols (via their SIR), project notes, and test intents. Every search
// mode shares one ranking vocabulary — reciprocal-rank fusion across
// result sets, an optional reranker pass, adaptive per-language similarity
// thresholds, and a recency/access boost — so a caller asking for
// "hybrid" or "ask" gets a response shaped the same way a plain lexical
// search does.
package retrieval

import (
	"sync"
	"time"

	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/inference"
	"aether/internal/relstore"
	"aether/internal/vectorstore"
)

// accessDebounceWindow bounds how often a single entity's access counters
// are bumped by reads of it, per spec.
const accessDebounceWindow = 60 * time.Second

// Engine is the retrieval engine's entry point. One Engine is shared by
// every caller in a workspace process; its only mutable state is the
// threshold cache and the access-debounce map, both internally
// synchronized.
type Engine struct {
	relStore    *relstore.Store
	graphStore  graphstore.Store
	vectorStore vectorstore.Store
	embedGen    inference.EmbeddingGenerator
	reranker    Reranker
	cfg         *config.Config

	thresholds *thresholdCache

	debounceMu sync.Mutex
	debounce   map[string]time.Time
}

// New constructs an Engine. reranker may be nil, in which case fused RRF
// output is always returned unreranked.
func New(cfg *config.Config, relStore *relstore.Store, graphStore graphstore.Store, vectorStore vectorstore.Store, embedGen inference.EmbeddingGenerator, reranker Reranker) *Engine {
	return &Engine{
		relStore:    relStore,
		graphStore:  graphStore,
		vectorStore: vectorStore,
		embedGen:    embedGen,
		reranker:    reranker,
		cfg:         cfg,
		thresholds:  newThresholdCache(),
		debounce:    make(map[string]time.Time),
	}
}

// touchAccess bumps an entity's access counters at most once per
// accessDebounceWindow, per spec's "reads that return an entity increment
// its access counters, debounced per entity to at most once per 60
// seconds."
func (e *Engine) touchAccess(entityID string, bump func() error) {
	e.debounceMu.Lock()
	last, ok := e.debounce[entityID]
	now := time.Now()
	if ok && now.Sub(last) < accessDebounceWindow {
		e.debounceMu.Unlock()
		return
	}
	e.debounce[entityID] = now
	e.debounceMu.Unlock()

	_ = bump() // best-effort: a failed access bump never fails the read it rides on
}
