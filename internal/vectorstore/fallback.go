package vectorstore

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"aether/internal/logging"
)

// SQLiteStore is the pure-Go fallback vector store: vectors are persisted
// as little-endian float32 blobs in an ordinary table, and SearchNearest
// does a brute-force cosine-similarity scan over the requested partition —
// no cgo, no extension loading, at the cost of O(n) search instead of ANN.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) the fallback vector store at
// path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open fallback db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (id, provider, model)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: create fallback schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(id string, vector []float32, provider, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO vectors (id, provider, model, dimension, vector) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, provider, model) DO UPDATE SET dimension = excluded.dimension, vector = excluded.vector`,
		id, provider, model, len(vector), encodeFloat32Slice(vector))
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vectorstore: delete %s: %w", id, err)
	}
	return nil
}

// SearchNearest implements Store via a brute-force cosine-similarity scan,
// matching the teacher's vectorRecallBruteForce fallback path.
func (s *SQLiteStore) SearchNearest(queryVector []float32, provider, model string, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, vector FROM vectors WHERE provider = ? AND model = ?`, provider, model)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search nearest: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("vectorstore: scan candidate row: %w", err)
		}
		sim := cosineSimilarity(queryVector, decodeFloat32Slice(blob))
		matches = append(matches, Match{ID: id, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// RebuildIndex implements Store; there is no ANN index to rebuild.
func (s *SQLiteStore) RebuildIndex() error {
	logging.VectorStore("fallback backend has no ANN index to rebuild")
	return nil
}

// AllRecords implements Store.
func (s *SQLiteStore) AllRecords(provider, model string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, vector FROM vectors WHERE provider = ? AND model = ?`, provider, model)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("vectorstore: scan record row: %w", err)
		}
		out = append(out, Record{ID: id, Vector: decodeFloat32Slice(blob), Provider: provider, Model: model})
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
