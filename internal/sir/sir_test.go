package sir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RejectsMissingField(t *testing.T) {
	raw := []byte(`{"intent":"x","inputs":[],"outputs":[],"side_effects":[],
		"dependencies":[],"error_modes":[],"confidence":0.5}`) // edge_cases missing
	_, err := Validate(raw)
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "edge_cases", schemaErr.Field)
}

func TestValidate_RejectsOutOfRangeConfidence(t *testing.T) {
	raw := []byte(`{"intent":"x","inputs":[],"outputs":[],"side_effects":[],
		"dependencies":[],"error_modes":[],"edge_cases":[],"confidence":1.5}`)
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidate_Accepts(t *testing.T) {
	raw := []byte(`{"intent":"does x","inputs":["a"],"outputs":["b"],"side_effects":[],
		"dependencies":[],"error_modes":[],"edge_cases":[],"confidence":0.9}`)
	s, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "does x", s.Intent)
}

func TestCanonicalize_SortsKeysRegardlessOfInputOrder(t *testing.T) {
	s := &SIR{Intent: "x", Confidence: 0.5, Inputs: []string{"a"}}
	canon, err := Canonicalize(s)
	require.NoError(t, err)

	var asMap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(canon, &asMap))

	// Re-marshal from a reordered raw map literal and compare.
	reordered := []byte(`{"confidence":0.5,"dependencies":null,"edge_cases":null,"error_modes":null,"inputs":["a"],"intent":"x","outputs":null,"side_effects":null}`)
	canon2, err := CanonicalizeRaw(reordered)
	require.NoError(t, err)
	assert.Equal(t, string(canon), string(canon2))
}

func TestHash_IdenticalCanonicalJSONYieldsIdenticalHash(t *testing.T) {
	s1 := &SIR{Intent: "x", Confidence: 0.5}
	s2 := &SIR{Intent: "x", Confidence: 0.5}
	h1, err := Hash(s1)
	require.NoError(t, err)
	h2, err := Hash(s2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHash_DiffersOnMeaningChange(t *testing.T) {
	s1 := &SIR{Intent: "x", Confidence: 0.5}
	s2 := &SIR{Intent: "y", Confidence: 0.5}
	h1, _ := Hash(s1)
	h2, _ := Hash(s2)
	assert.NotEqual(t, h1, h2)
}

func TestAggregateFile_UnionAndMinConfidence(t *testing.T) {
	leaves := []SIR{
		{Intent: "a", SideEffects: []string{"writes db"}, Confidence: 0.9},
		{Intent: "b", SideEffects: []string{"writes db", "logs"}, Confidence: 0.6},
	}
	rollup, err := AggregateFile(leaves, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"logs", "writes db"}, rollup.SideEffects)
	assert.Equal(t, 0.6, rollup.Confidence)
	assert.Equal(t, "a b", rollup.Intent)
	assert.Equal(t, 2, rollup.LeafCount)
}

type stubSummarizer struct{ called bool }

func (s *stubSummarizer) Summarize(intents []string) (string, error) {
	s.called = true
	return "summary", nil
}

func TestAggregateFile_SummarizesAboveThreshold(t *testing.T) {
	var leaves []SIR
	for i := 0; i < 6; i++ {
		leaves = append(leaves, SIR{Intent: "leaf", Confidence: 1.0})
	}
	stub := &stubSummarizer{}
	rollup, err := AggregateFile(leaves, stub)
	require.NoError(t, err)
	assert.True(t, stub.called)
	assert.Equal(t, "summary", rollup.Intent)
}

func TestAggregateModule_SkipsMissingFilesButCountsThem(t *testing.T) {
	a := SIR{Intent: "a", Confidence: 0.8}
	rollup, err := AggregateModule([]*SIR{&a, nil, nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rollup.FilesTotal)
	assert.Equal(t, 1, rollup.FilesWithSIR)
}

func TestFileIDAndModuleID_AreStableAndDistinct(t *testing.T) {
	f := FileID("go", "pkg/foo.go")
	m := ModuleID("go", "pkg")
	assert.NotEqual(t, f, m)
	assert.Equal(t, f, FileID("go", "pkg/foo.go"))
}
