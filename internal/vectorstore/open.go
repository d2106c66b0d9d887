package vectorstore

import (
	"fmt"
	"path/filepath"

	"aether/internal/config"
)

// Open selects and constructs the vector-store backend named by
// cfg.Embeddings.VectorBackend ("ann" or "fallback"), at a path derived
// from workspaceDir. The ann backend requires a cgo build tagged
// sqlite_vec; builds without it fall back automatically so a plain "go
// build" of the module always produces a working binary.
func Open(cfg *config.Config, workspaceDir string) (Store, error) {
	dbPath := filepath.Join(workspaceDir, ".aether", "vectors.db")

	switch cfg.Embeddings.VectorBackend {
	case "ann":
		store, err := openANNIfAvailable(dbPath)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: open ann backend: %w", err)
		}
		return store, nil
	case "fallback", "":
		return OpenSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("vectorstore: unknown vector_backend %q", cfg.Embeddings.VectorBackend)
	}
}
