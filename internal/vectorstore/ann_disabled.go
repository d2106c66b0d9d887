//go:build !sqlite_vec || !cgo

package vectorstore

import "aether/internal/logging"

// openANNIfAvailable is the no-cgo build's stand-in: it logs and degrades
// to the pure-Go fallback store rather than failing a plain `go build`.
func openANNIfAvailable(dbPath string) (Store, error) {
	logging.VectorStore("binary built without sqlite_vec+cgo; using fallback vector store instead of ann")
	return OpenSQLiteStore(dbPath)
}
