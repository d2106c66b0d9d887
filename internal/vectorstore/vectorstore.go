// Package vectorstore holds dense embeddings for symbols and project notes,
// partitioned by (provider, model, dimension), and serves nearest-neighbour
// search. Two polymorphic variants implement Store: an ANN-accelerated
// variant backed by the sqlite-vec extension (requires cgo), and a
// pure-Go linear-scan fallback backed by modernc.org/sqlite.
package vectorstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Match is one ranked nearest-neighbour hit.
type Match struct {
	ID         string
	Similarity float64
}

// Record is one stored vector, used for cross-backend migration when the
// active provider/model changes.
type Record struct {
	ID       string
	Vector   []float32
	Provider string
	Model    string
}

// Store is the polymorphic vector-store contract both variants implement.
type Store interface {
	// Upsert adds or replaces the vector for id under the (provider, model)
	// partition. In the ANN variant the partition's dimension is fixed by
	// the first vector written to it; the fallback variant records each
	// row's dimension and accepts vectors of any width.
	Upsert(id string, vector []float32, provider, model string) error

	// Delete removes id from every partition it appears in.
	Delete(id string) error

	// SearchNearest returns the k closest vectors to queryVector within the
	// (provider, model) partition, ranked by cosine similarity descending.
	SearchNearest(queryVector []float32, provider, model string, k int) ([]Match, error)

	// RebuildIndex rebuilds any ANN index structures after bulk writes.
	// The fallback variant treats this as a no-op.
	RebuildIndex() error

	// AllRecords returns every record in the (provider, model) partition,
	// for one-way migration into a newly activated backend/partition.
	AllRecords(provider, model string) ([]Record, error)

	Close() error
}

// MigratePartition batch-copies every record in the (provider, model)
// partition from src into dst and returns the number of records copied.
// It only copies: src is left as it was, and nothing in this module calls
// it outside its tests, so switching backends or models does not migrate
// existing vectors.
func MigratePartition(src, dst Store, provider, model string) (int, error) {
	records, err := src.AllRecords(provider, model)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: read source partition for migration: %w", err)
	}
	for _, rec := range records {
		if err := dst.Upsert(rec.ID, rec.Vector, rec.Provider, rec.Model); err != nil {
			return 0, fmt.Errorf("vectorstore: migrate record %s: %w", rec.ID, err)
		}
	}
	return len(records), nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeFloat32Slice(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	_ = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &out)
	return out
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
