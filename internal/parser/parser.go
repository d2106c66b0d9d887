// Package parser extracts symbols, unresolved edges, and test intents from
// source files. Dispatch is data-driven: a Registry selects a LanguageParser
// by file extension, mirroring the Stratified Bridge Pattern's separation
// of language-specific extraction from language-agnostic output shape —
// minus the Mangle fact emission, which AETHER has no use for.
package parser

import (
	"encoding/binary"

	"aether/internal/symbol"

	"lukechampine.com/blake3"
)

// EdgeKind classifies an unresolved symbol edge produced by extraction.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "calls"
	EdgeDependsOn  EdgeKind = "depends_on"
)

// UnresolvedEdge names a relationship by the callee/dependency's qualified
// name, not yet matched against a known SymbolID. Resolution happens later,
// against the full cross-file symbol set (see internal/orchestrator).
type UnresolvedEdge struct {
	SourceID          symbol.SymbolID
	TargetQualifiedName string
	EdgeKind          EdgeKind
	FilePath          string
}

// TestIntent captures the human-readable purpose of one test function, as
// extracted verbatim or derived from its name and doc comment.
type TestIntent struct {
	FilePath    string
	TestName    string
	IntentText  string
	GroupLabel  string
	Language    string
	SymbolID    *symbol.SymbolID
}

// ID is the content-addressed identity of a TestIntent, BLAKE3 over its
// identifying fields.
func (t TestIntent) ID() [32]byte {
	h := blake3.New(32, nil)
	for _, field := range []string{t.FilePath, t.TestName, t.IntentText, t.GroupLabel, t.Language} {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field)))
		h.Write(lenBuf[:])
		h.Write([]byte(field))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ParseError is a non-fatal issue encountered while parsing one file. A
// file that produces errors still returns whatever symbols were
// successfully extracted; the caller (orchestrator) never lets a failed
// parse erase previously stored data for that file.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

// ParseResult is the output of parsing a single file.
type ParseResult struct {
	Symbols     []symbol.Symbol
	Edges       []UnresolvedEdge
	TestIntents []TestIntent
	Errors      []ParseError
}

// LanguageParser extracts ParseResult from one file's content. Implementations
// are registered against the extensions they claim in a Registry.
type LanguageParser interface {
	// Language is the short lowercase identifier used in symbol_id tuples
	// (e.g. "go", "python", "typescript", "rust").
	Language() string

	// SupportedExtensions lists the file extensions this parser handles,
	// each including the leading dot.
	SupportedExtensions() []string

	// Parse extracts symbols, unresolved edges, and test intents from one
	// file's content. path is workspace-relative and already normalized.
	Parse(path string, content []byte) (*ParseResult, error)

	// ModuleMarkers lists filenames that denote a module boundary for this
	// language (e.g. "__init__.py", "go.mod", "Cargo.toml"). No code in
	// this module calls it; internal/sir's module rollup does not consult
	// it.
	ModuleMarkers() []string
}
