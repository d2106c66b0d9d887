package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"aether/internal/config"
	"aether/internal/relstore"
	"aether/internal/retrieval"
	"aether/internal/vectorstore"
)

func openTestRelStore(t *testing.T) *relstore.Store {
	t.Helper()
	st, err := relstore.Open(filepath.Join(t.TempDir(), "aether.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type stubEmbedder struct {
	vector []float32
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}
func (s *stubEmbedder) Provider() string { return "mock" }
func (s *stubEmbedder) Model() string    { return "mock-fixed" }

func TestRemember_InsertsAndEmbedsNewNote(t *testing.T) {
	relStore := openTestRelStore(t)
	vecStore, err := vectorstore.OpenSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { vecStore.Close() })
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	e := New(relStore, vecStore, embedder, nil)
	result, err := e.Remember(context.Background(), "remember to refactor the parser", []string{"todo"}, nil, nil, nil, "manual")
	require.NoError(t, err)
	require.False(t, result.UpdatedExisting)
	require.NotEmpty(t, result.NoteID)
	require.Equal(t, 1, embedder.calls)

	note, err := relStore.GetNote(result.NoteID)
	require.NoError(t, err)
	require.NotNil(t, note)
	require.Equal(t, "remember to refactor the parser", note.Content)
	require.Equal(t, []string{"todo"}, note.Tags)

	matches, err := vecStore.SearchNearest([]float32{1, 0, 0}, "mock", "mock-fixed", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, result.NoteID, matches[0].ID)
}

func TestRemember_MergesDuplicateContentAndUnionsTags(t *testing.T) {
	relStore := openTestRelStore(t)
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	e := New(relStore, nil, embedder, nil)

	first, err := e.Remember(context.Background(), "investigate flaky test", []string{"testing"}, nil, nil, nil, "manual")
	require.NoError(t, err)
	require.False(t, first.UpdatedExisting)

	second, err := e.Remember(context.Background(), "investigate   flaky test", []string{"ci"}, nil, nil, nil, "manual")
	require.NoError(t, err)
	require.True(t, second.UpdatedExisting, "whitespace-normalized duplicate content must merge, not insert a new row")
	require.Equal(t, first.NoteID, second.NoteID)
	require.Equal(t, 1, embedder.calls, "a merged duplicate must not re-embed")

	note, err := relStore.GetNote(first.NoteID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ci", "testing"}, note.Tags)
}

func TestRemember_RejectsEmptyContent(t *testing.T) {
	relStore := openTestRelStore(t)
	e := New(relStore, nil, nil, nil)

	_, err := e.Remember(context.Background(), "   \n\t  ", nil, nil, nil, nil, "manual")
	require.ErrorIs(t, err, errEmptyContent)
}

func TestSessionNote_RejectsEmptyContentAndTagsSourceType(t *testing.T) {
	relStore := openTestRelStore(t)
	e := New(relStore, nil, nil, nil)

	_, err := e.SessionNote(context.Background(), "", nil, nil, nil, nil)
	require.ErrorIs(t, err, errEmptyContent)

	result, err := e.SessionNote(context.Background(), "agent observed a regression in module X", nil, nil, nil, nil)
	require.NoError(t, err)

	note, err := relStore.GetNote(result.NoteID)
	require.NoError(t, err)
	require.Equal(t, "session", note.SourceType)
}

func TestRecall_FiltersByTag(t *testing.T) {
	relStore := openTestRelStore(t)
	e := New(relStore, nil, nil, nil)

	_, err := e.Remember(context.Background(), "note about the billing module", []string{"billing"}, nil, nil, nil, "manual")
	require.NoError(t, err)
	_, err = e.Remember(context.Background(), "note about the billing outage", []string{"incident"}, nil, nil, nil, "manual")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	retrievalEngine := retrieval.New(cfg, relStore, nil, nil, nil, nil)
	recallEngine := New(relStore, nil, nil, retrievalEngine)

	resp, err := recallEngine.Recall(context.Background(), "billing", retrieval.ModeHybrid, 10, []string{"incident"}, false)
	require.NoError(t, err)
	for _, r := range resp.Results {
		require.Equal(t, retrieval.KindNote, r.Kind)
	}
	require.Len(t, resp.Results, 1, "only the note tagged 'incident' should survive the tag filter")
}

func TestRecall_WithoutRetrievalEngineErrors(t *testing.T) {
	relStore := openTestRelStore(t)
	e := New(relStore, nil, nil, nil)

	_, err := e.Recall(context.Background(), "anything", retrieval.ModeHybrid, 10, nil, false)
	require.Error(t, err)
}
