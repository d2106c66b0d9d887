//go:build sqlite_vec && cgo

package vectorstore

import (
	"database/sql"
	"fmt"
	"sync"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"aether/internal/logging"
)

func init() {
	vec.Auto()
}

// ANNStore is the sqlite-vec-backed vector store: a vec0 virtual table per
// (provider, model) partition gives true approximate-nearest-neighbour
// search instead of SQLiteStore's brute-force scan.
type ANNStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	partitions map[string]int // partition key -> dimension, for table existence tracking
}

func partitionKey(provider, model string) string {
	return provider + "::" + model
}

func partitionTable(provider, model string) string {
	return fmt.Sprintf("vec_%s_%s", sanitizeIdent(provider), sanitizeIdent(model))
}

func sanitizeIdent(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// OpenANNStore opens (creating if absent) the sqlite-vec-backed store at
// path.
func OpenANNStore(path string) (*ANNStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open ann db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vec_partitions (
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		table_name TEXT NOT NULL,
		PRIMARY KEY (provider, model)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: create partition registry: %w", err)
	}

	store := &ANNStore{db: db, partitions: make(map[string]int)}
	if err := store.hydratePartitions(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// hydratePartitions repopulates the in-memory partition registry from
// vec_partitions, since the vec0 virtual tables themselves persist across
// reopens but this process's bookkeeping does not.
func (s *ANNStore) hydratePartitions() error {
	rows, err := s.db.Query(`SELECT provider, model, dimension FROM vec_partitions`)
	if err != nil {
		return fmt.Errorf("vectorstore: hydrate partitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var provider, model string
		var dimension int
		if err := rows.Scan(&provider, &model, &dimension); err != nil {
			return fmt.Errorf("vectorstore: scan partition row: %w", err)
		}
		s.partitions[partitionKey(provider, model)] = dimension
	}
	return nil
}

// ensurePartition creates the vec0 virtual table backing (provider, model)
// the first time a vector of dimension is written to it. Caller holds s.mu.
func (s *ANNStore) ensurePartition(provider, model string, dimension int) (string, error) {
	key := partitionKey(provider, model)
	if _, ok := s.partitions[key]; ok {
		return partitionTable(provider, model), nil
	}

	table := partitionTable(provider, model)
	createSQL := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, table, dimension)
	if _, err := s.db.Exec(createSQL); err != nil {
		return "", fmt.Errorf("vectorstore: create vec0 partition %s: %w", table, err)
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO vec_partitions (provider, model, dimension, table_name) VALUES (?, ?, ?, ?)`,
		provider, model, dimension, table); err != nil {
		return "", fmt.Errorf("vectorstore: register vec0 partition %s: %w", table, err)
	}
	s.partitions[key] = dimension
	logging.VectorStore("created ann partition %s (dimension=%d)", table, dimension)
	return table, nil
}

// Upsert implements Store.
func (s *ANNStore) Upsert(id string, vector []float32, provider, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.ensurePartition(provider, model, len(vector))
	if err != nil {
		return err
	}
	_, err = s.db.Exec(fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, embedding) VALUES (?, ?)`, table),
		id, encodeFloat32Slice(vector))
	if err != nil {
		return fmt.Errorf("vectorstore: ann upsert %s: %w", id, err)
	}
	return nil
}

// Delete implements Store, removing id from every known partition (a
// partition the caller never wrote into is cheaply skipped).
func (s *ANNStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT table_name FROM vec_partitions`)
	if err != nil {
		return fmt.Errorf("vectorstore: list partitions for delete: %w", err)
	}
	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return err
		}
		tables = append(tables, t)
	}
	rows.Close()

	for _, table := range tables {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
			return fmt.Errorf("vectorstore: ann delete %s from %s: %w", id, table, err)
		}
	}
	return nil
}

// SearchNearest implements Store via sqlite-vec's vec_distance_cosine.
func (s *ANNStore) SearchNearest(queryVector []float32, provider, model string, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := partitionTable(provider, model)
	if _, ok := s.partitions[partitionKey(provider, model)]; !ok {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT id, vec_distance_cosine(embedding, ?) AS dist FROM %s ORDER BY dist ASC LIMIT ?`, table),
		encodeFloat32Slice(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: ann search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, fmt.Errorf("vectorstore: scan ann match: %w", err)
		}
		matches = append(matches, Match{ID: id, Similarity: 1 - dist})
	}
	return matches, nil
}

// RebuildIndex implements Store; sqlite-vec maintains its own index
// incrementally, so this reindexes nothing but is kept for interface
// symmetry with SQLiteStore.
func (s *ANNStore) RebuildIndex() error {
	logging.VectorStore("ann backend maintains its index incrementally; rebuild is a no-op")
	return nil
}

// AllRecords implements Store.
func (s *ANNStore) AllRecords(provider, model string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.partitions[partitionKey(provider, model)]; !ok {
		return nil, nil
	}
	table := partitionTable(provider, model)

	rows, err := s.db.Query(fmt.Sprintf(`SELECT id, embedding FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list ann records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("vectorstore: scan ann record: %w", err)
		}
		out = append(out, Record{ID: id, Vector: decodeFloat32Slice(blob), Provider: provider, Model: model})
	}
	return out, nil
}

// Close implements Store.
func (s *ANNStore) Close() error {
	return s.db.Close()
}

var _ Store = (*ANNStore)(nil)
