// Package orchestrator is AETHER's single cross-store writer: the only
// component permitted to mutate the relational store, the graph store, and
// the vector store in service of one logical change (a parsed file). Every
// other component either reads from these stores directly or asks the
// orchestrator to index something; nothing else writes across stores.
//
// The per-file write lock and bounded worker pool generalize the teacher's
// LocalStore write-serialization and background-goroutine backfill idioms
// (internal/store.SetEmbeddingEngine's `go func() { ... }()`) to a
// multi-store, multi-language pipeline.
package orchestrator

import (
	"sync"

	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/inference"
	"aether/internal/parser"
	"aether/internal/relstore"
	"aether/internal/vectorstore"
)

// Orchestrator indexes files: parse, diff, transact, regenerate SIR, embed,
// resolve edges. One Orchestrator owns exactly one of each store and serves
// as the sole writer spanning all three.
type Orchestrator struct {
	cfg *config.Config

	relStore    *relstore.Store
	graphStore  graphstore.Store
	vectorStore vectorstore.Store

	parsers   *parser.Registry
	sirGen    *inference.RetryingSirGenerator
	embedGen  inference.EmbeddingGenerator

	workspaceDir string
	vcsReader    CommitHasher

	fileLocksMu sync.Mutex
	fileLocks   map[string]*sync.Mutex
}

// CommitHasher is the subset of internal/vcsreader.Reader the orchestrator
// needs to stamp sir_history rows with the commit they were generated
// against. Nil when the workspace isn't a VCS checkout (or isn't wired),
// in which case PutSIR is called with an empty commit hash.
type CommitHasher interface {
	Head() (string, error)
}

// SetVCSReader wires a commit-hash source into the orchestrator after
// construction, optional and nil by default so callers that never touch
// VCS (tests, non-git workspaces) are unaffected.
func (o *Orchestrator) SetVCSReader(r CommitHasher) {
	o.vcsReader = r
}

// New constructs an Orchestrator over already-opened stores and adapters.
// workspaceDir is the root the stores and SIR mirror are rooted under.
func New(cfg *config.Config, relStore *relstore.Store, graphStore graphstore.Store, vectorStore vectorstore.Store,
	parsers *parser.Registry, sirGen *inference.RetryingSirGenerator, embedGen inference.EmbeddingGenerator, workspaceDir string) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		relStore:     relStore,
		graphStore:   graphStore,
		vectorStore:  vectorStore,
		parsers:      parsers,
		sirGen:       sirGen,
		embedGen:     embedGen,
		workspaceDir: workspaceDir,
		fileLocks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing writes to path, creating it on
// first use. One active writer per file at a time; readers of the
// relational/graph/vector stores are unaffected since those stores
// serialize their own writes independently and never block reads against a
// committed snapshot.
func (o *Orchestrator) lockFor(path string) *sync.Mutex {
	o.fileLocksMu.Lock()
	defer o.fileLocksMu.Unlock()
	m, ok := o.fileLocks[path]
	if !ok {
		m = &sync.Mutex{}
		o.fileLocks[path] = m
	}
	return m
}
