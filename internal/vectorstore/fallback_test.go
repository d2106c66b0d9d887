package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_UpsertAndSearchNearest(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Upsert("sym-a", []float32{1, 0, 0}, "mock", "mock-embed-v1"))
	require.NoError(t, st.Upsert("sym-b", []float32{0, 1, 0}, "mock", "mock-embed-v1"))
	require.NoError(t, st.Upsert("sym-c", []float32{0.9, 0.1, 0}, "mock", "mock-embed-v1"))

	matches, err := st.SearchNearest([]float32{1, 0, 0}, "mock", "mock-embed-v1", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "sym-a", matches[0].ID)
	require.Equal(t, "sym-c", matches[1].ID)
}

func TestSQLiteStore_SearchIsScopedToPartition(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Upsert("sym-a", []float32{1, 0}, "mock", "v1"))
	require.NoError(t, st.Upsert("sym-a", []float32{0, 1}, "cloud_api", "v2"))

	matches, err := st.SearchNearest([]float32{1, 0}, "mock", "v1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	empty, err := st.SearchNearest([]float32{1, 0}, "nonexistent", "v0", 10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSQLiteStore_Delete(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Upsert("sym-a", []float32{1, 0}, "mock", "v1"))
	require.NoError(t, st.Delete("sym-a"))

	matches, err := st.SearchNearest([]float32{1, 0}, "mock", "v1", 10)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestMigratePartition_CopiesRecordsBetweenBackends(t *testing.T) {
	src := openTestStore(t)
	dst := openTestStore(t)
	require.NoError(t, src.Upsert("sym-a", []float32{1, 0}, "mock", "v1"))
	require.NoError(t, src.Upsert("sym-b", []float32{0, 1}, "mock", "v1"))

	n, err := MigratePartition(src, dst, "mock", "v1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	matches, err := dst.SearchNearest([]float32{1, 0}, "mock", "v1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	require.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}
