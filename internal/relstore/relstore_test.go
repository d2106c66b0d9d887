package relstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aether/internal/aethererr"
	"aether/internal/parser"
	"aether/internal/sir"
	"aether/internal/symbol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "aether.db")
	st, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleSymbol(qualifiedName, filePath string) symbol.Symbol {
	sym := symbol.Symbol{
		Language:             "go",
		FilePath:             filePath,
		QualifiedName:        qualifiedName,
		Kind:                 symbol.KindFunction,
		SignatureFingerprint: "func()",
	}
	return sym.WithID()
}

func TestUpsertSymbol_AndRoundTrip(t *testing.T) {
	st := openTestStore(t)
	sym := sampleSymbol("pkg.DoThing", "pkg/thing.go")

	require.NoError(t, st.UpsertSymbol(sym))

	ids, err := st.symbolIDsForFile("pkg/thing.go")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Equal(t, sym.ID, ids[0])
}

func TestDeleteMissingSymbolsForFile_RemovesOnlyUnkept(t *testing.T) {
	st := openTestStore(t)
	keep := sampleSymbol("pkg.Keep", "pkg/thing.go")
	drop := sampleSymbol("pkg.Drop", "pkg/thing.go")
	require.NoError(t, st.UpsertSymbol(keep))
	require.NoError(t, st.UpsertSymbol(drop))

	require.NoError(t, st.DeleteMissingSymbolsForFile("pkg/thing.go", []symbol.SymbolID{keep.ID}))

	ids, err := st.symbolIDsForFile("pkg/thing.go")
	require.NoError(t, err)
	require.Equal(t, []symbol.SymbolID{keep.ID}, ids)
}

func TestDeleteMissingSymbolsForFile_CascadesSIRButKeepsHistory(t *testing.T) {
	st := openTestStore(t)
	drop := sampleSymbol("pkg.Drop", "pkg/thing.go")
	require.NoError(t, st.UpsertSymbol(drop))

	record := validSIRRecord()
	hash, canonical := hashAndCanonicalize(t, record)
	require.NoError(t, st.PutSIR(drop.ID, record, hash, canonical, "commit1"))

	require.NoError(t, st.DeleteMissingSymbolsForFile("pkg/thing.go", nil))

	leaf, err := st.GetLeafSIR(drop.ID)
	require.NoError(t, err)
	require.Nil(t, leaf)

	var historyCount int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM sir_history WHERE symbol_id = ?`, drop.ID.String()).Scan(&historyCount))
	require.Equal(t, 1, historyCount)
}

func TestPutSIR_AppendsHistoryOnlyOnHashChange(t *testing.T) {
	st := openTestStore(t)
	sym := sampleSymbol("pkg.DoThing", "pkg/thing.go")
	require.NoError(t, st.UpsertSymbol(sym))

	record := validSIRRecord()
	hash, canonical := hashAndCanonicalize(t, record)

	require.NoError(t, st.PutSIR(sym.ID, record, hash, canonical, "commit1"))
	require.NoError(t, st.PutSIR(sym.ID, record, hash, canonical, "commit1-repeat"))

	var count int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM sir_history WHERE symbol_id = ?`, sym.ID.String()).Scan(&count))
	require.Equal(t, 1, count, "regenerating an identical SIR must not append a second history row")

	changed := *record
	changed.Intent = "does something entirely different"
	changedHash, changedCanonical := hashAndCanonicalize(t, &changed)
	require.NoError(t, st.PutSIR(sym.ID, &changed, changedHash, changedCanonical, "commit2"))

	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM sir_history WHERE symbol_id = ?`, sym.ID.String()).Scan(&count))
	require.Equal(t, 2, count, "a meaning change must append a new history row")

	leaf, err := st.GetLeafSIR(sym.ID)
	require.NoError(t, err)
	require.Equal(t, changedHash, leaf.Hash)
	require.Equal(t, "ok", leaf.Status)
}

func TestMarkStale_DoesNotDisturbLastGoodSIR(t *testing.T) {
	st := openTestStore(t)
	sym := sampleSymbol("pkg.DoThing", "pkg/thing.go")
	require.NoError(t, st.UpsertSymbol(sym))

	record := validSIRRecord()
	hash, canonical := hashAndCanonicalize(t, record)
	require.NoError(t, st.PutSIR(sym.ID, record, hash, canonical, "commit1"))

	require.NoError(t, st.MarkStale(sym.ID, "provider timeout", time.Now()))

	leaf, err := st.GetLeafSIR(sym.ID)
	require.NoError(t, err)
	require.Equal(t, "stale", leaf.Status)
	require.Equal(t, hash, leaf.Hash, "last-good sir_hash must survive a stale mark")
	require.Equal(t, "provider timeout", leaf.LastError)
}

func TestReplaceEdgesForFile_IsDeleteThenReinsert(t *testing.T) {
	st := openTestStore(t)
	src := sampleSymbol("pkg.Caller", "pkg/thing.go")
	require.NoError(t, st.UpsertSymbol(src))

	first := []parser.UnresolvedEdge{{SourceID: src.ID, TargetQualifiedName: "pkg.Callee", EdgeKind: parser.EdgeCalls, FilePath: "pkg/thing.go"}}
	require.NoError(t, st.ReplaceEdgesForFile("pkg/thing.go", first))

	second := []parser.UnresolvedEdge{{SourceID: src.ID, TargetQualifiedName: "pkg.OtherCallee", EdgeKind: parser.EdgeCalls, FilePath: "pkg/thing.go"}}
	require.NoError(t, st.ReplaceEdgesForFile("pkg/thing.go", second))

	all, err := st.AllUnresolvedEdges()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "pkg.OtherCallee", all[0].TargetQualifiedName)
}

func TestReplaceTestIntentsForFile_IsDeleteThenReinsert(t *testing.T) {
	st := openTestStore(t)
	first := []parser.TestIntent{{FilePath: "pkg/thing_test.go", TestName: "TestOne", IntentText: "checks one", Language: "go"}}
	require.NoError(t, st.ReplaceTestIntentsForFile("pkg/thing_test.go", first))

	second := []parser.TestIntent{{FilePath: "pkg/thing_test.go", TestName: "TestTwo", IntentText: "checks two", Language: "go"}}
	require.NoError(t, st.ReplaceTestIntentsForFile("pkg/thing_test.go", second))

	var count int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM test_intents WHERE file_path = ?`, "pkg/thing_test.go").Scan(&count))
	require.Equal(t, 1, count)
}

func TestUpsertNote_MergesTagsOnDuplicateContentHash(t *testing.T) {
	st := openTestStore(t)
	note := NoteRecord{NoteID: "note-1", Content: "remember this", ContentHash: "hash-a", SourceType: "manual", Tags: []string{"alpha"}}

	id1, merged1, err := st.UpsertNote(note)
	require.NoError(t, err)
	require.False(t, merged1)
	require.Equal(t, "note-1", id1)

	dup := NoteRecord{NoteID: "note-2", Content: "remember this", ContentHash: "hash-a", SourceType: "manual", Tags: []string{"beta"}}
	id2, merged2, err := st.UpsertNote(dup)
	require.NoError(t, err)
	require.True(t, merged2)
	require.Equal(t, "note-1", id2, "duplicate content hash must merge into the existing row, not insert a new one")

	notes, err := st.RecallNotes("remember", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.ElementsMatch(t, []string{"alpha", "beta"}, notes[0].Tags)
	require.Equal(t, 1, notes[0].AccessCount)
}

func TestSearchLexical_RanksExactBeforePrefixBeforeSubstring(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertSymbol(sampleSymbol("Handle", "a.go")))
	require.NoError(t, st.UpsertSymbol(sampleSymbol("HandleRequest", "b.go")))
	require.NoError(t, st.UpsertSymbol(sampleSymbol("preHandleHook", "c.go")))

	matches, err := st.SearchLexical("Handle", 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, "Handle", matches[0].QualifiedName)
	require.Equal(t, "HandleRequest", matches[1].QualifiedName)
	require.Equal(t, "preHandleHook", matches[2].QualifiedName)
}

func TestCouplingAndDriftState_RoundTrip(t *testing.T) {
	st := openTestStore(t)

	empty, err := st.GetCouplingMiningState()
	require.NoError(t, err)
	require.Equal(t, CouplingMiningState{}, empty)

	require.NoError(t, st.PutCouplingMiningState(CouplingMiningState{LastCommit: "abc123", CommitsScanned: 42}))
	st2, err := st.GetCouplingMiningState()
	require.NoError(t, err)
	require.Equal(t, "abc123", st2.LastCommit)
	require.Equal(t, 42, st2.CommitsScanned)

	require.NoError(t, st.PutDriftAnalysisState(DriftAnalysisState{LastAnalysisCommit: "def456", SymbolsAnalyzed: 7, DriftDetected: true}))
	dst, err := st.GetDriftAnalysisState()
	require.NoError(t, err)
	require.True(t, dst.DriftDetected)
	require.Equal(t, 7, dst.SymbolsAnalyzed)
}

func TestLatestIntentSnapshot_ErrorsWhenNoneCaptured(t *testing.T) {
	st := openTestStore(t)
	_, err := st.LatestIntentSnapshot("module", "pkg/foo")
	require.ErrorIs(t, err, aethererr.ErrNoBaseline)
}

func validSIRRecord() *sir.SIR {
	return &sir.SIR{
		Intent:       "parses a configuration file",
		Inputs:       []string{"path"},
		Outputs:      []string{"Config"},
		SideEffects:  []string{},
		Dependencies: []string{},
		ErrorModes:   []string{"io error"},
		EdgeCases:    []string{"empty file"},
		Confidence:   0.9,
	}
}

func hashAndCanonicalize(t *testing.T, record *sir.SIR) (string, string) {
	t.Helper()
	canonical, err := sir.Canonicalize(record)
	require.NoError(t, err)
	hash, err := sir.Hash(record)
	require.NoError(t, err)
	return hash, string(canonical)
}
