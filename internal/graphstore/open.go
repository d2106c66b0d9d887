package graphstore

import (
	"fmt"
	"os"

	"aether/internal/config"
	"aether/internal/logging"
)

// Open selects and constructs the graph-store backend named by
// cfg.Storage.GraphBackend ("full" or "fallback").
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.GraphBackend {
	case "full":
		password := os.Getenv(cfg.Storage.Neo4jPasswordEnv)
		store, err := NewNeo4jStore(cfg.Storage.Neo4jURI, cfg.Storage.Neo4jUsername, password, cfg.Storage.Neo4jDatabase)
		if err != nil {
			return nil, fmt.Errorf("graphstore: open full backend: %w", err)
		}
		return store, nil
	case "fallback", "":
		logging.GraphStore("using in-process gonum graph store")
		return NewGonumStore(), nil
	default:
		return nil, fmt.Errorf("graphstore: unknown graph_backend %q", cfg.Storage.GraphBackend)
	}
}
