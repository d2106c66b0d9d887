// Package memory wraps internal/relstore's project-notes table with
// normalization, content-hash dedup, and embedding upsert, generalizing the
// teacher's local-knowledge content-hash dedup idiom from knowledge atoms
// to project notes and session captures.
package memory

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"lukechampine.com/blake3"

	"aether/internal/relstore"
	"aether/internal/retrieval"
)

// maxEmbeddingChars bounds how much of a note's content is embedded, a
// rough stand-in for "truncate to the embedding model's token window" in
// the absence of an actual tokenizer, mirroring the truncate-by-length
// idiom used throughout the pack (internal/inference/retry.go's
// truncateTail, internal/orchestrator/indexfile.go's truncate).
const maxEmbeddingChars = 8000

var errEmptyContent = errors.New("memory: content must not be empty")

// EmbeddingGenerator is the subset of inference.EmbeddingGenerator memory
// needs, kept narrow so callers don't have to satisfy the full interface
// in tests.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Provider() string
	Model() string
}

// VectorUpserter is the subset of vectorstore.Store memory needs.
type VectorUpserter interface {
	Upsert(id string, vector []float32, provider, model string) error
}

// Engine implements remember/recall/session_note over a relstore.Store,
// embedding new notes through an EmbeddingGenerator and indexing them in a
// VectorUpserter.
type Engine struct {
	relStore    *relstore.Store
	vectorStore VectorUpserter
	embedGen    EmbeddingGenerator
	retrieval   *retrieval.Engine
}

// New builds a memory Engine. retrievalEngine may be nil if recall will
// never be called (e.g. a write-only ingestion path).
func New(relStore *relstore.Store, vectorStore VectorUpserter, embedGen EmbeddingGenerator, retrievalEngine *retrieval.Engine) *Engine {
	return &Engine{
		relStore:    relStore,
		vectorStore: vectorStore,
		embedGen:    embedGen,
		retrieval:   retrievalEngine,
	}
}

// RememberResult reports what Remember did: whether it merged into an
// existing note (by content hash) or inserted a new one, and the note's
// final ID either way.
type RememberResult struct {
	NoteID         string
	UpdatedExisting bool
}

// Remember normalizes content's whitespace, computes its content hash, and
// either merges it into an existing non-archived note with the same hash
// (tag union, access bump, updated_at refresh) or inserts a new note,
// embeds it, and upserts the vector.
func (e *Engine) Remember(ctx context.Context, content string, tags, fileRefs, symbolRefs []string, entityRefs []relstore.EntityRefRecord, sourceType string) (RememberResult, error) {
	normalized := normalizeWhitespace(content)
	if normalized == "" {
		return RememberResult{}, errEmptyContent
	}

	hash := contentHash(normalized)
	noteID := hash // content-addressed: identical content always yields the same note_id before any merge lookup

	finalID, merged, err := e.relStore.UpsertNote(relstore.NoteRecord{
		NoteID:      noteID,
		Content:     normalized,
		ContentHash: hash,
		SourceType:  sourceType,
		Tags:        tags,
		FileRefs:    fileRefs,
		SymbolRefs:  symbolRefs,
		EntityRefs:  entityRefs,
	})
	if err != nil {
		return RememberResult{}, err
	}

	if !merged && e.embedGen != nil && e.vectorStore != nil {
		vectors, err := e.embedGen.Embed(ctx, []string{truncateForEmbedding(normalized)})
		if err == nil && len(vectors) > 0 {
			_ = e.vectorStore.Upsert(finalID, vectors[0], e.embedGen.Provider(), e.embedGen.Model())
		}
	}

	return RememberResult{NoteID: finalID, UpdatedExisting: merged}, nil
}

// SessionNote is a thin wrapper over Remember for agent-authored session
// captures: source_type is forced to "session" and empty content is
// rejected (Remember already rejects it, but this makes the contract
// explicit for this entry point specifically).
func (e *Engine) SessionNote(ctx context.Context, content string, tags, fileRefs, symbolRefs []string, entityRefs []relstore.EntityRefRecord) (RememberResult, error) {
	if strings.TrimSpace(content) == "" {
		return RememberResult{}, errEmptyContent
	}
	return e.Remember(ctx, content, tags, fileRefs, symbolRefs, entityRefs, "session")
}

// Recall runs the retrieval engine's unified Ask query, keeps only note
// results, then applies an in-process tag filter and, unless
// includeArchived is set, drops archived notes. mode does not change the
// search; it is only reported back as the response's ModeRequested.
func (e *Engine) Recall(ctx context.Context, query string, mode retrieval.Mode, limit int, tagsFilter []string, includeArchived bool) (retrieval.Response, error) {
	if e.retrieval == nil {
		return retrieval.Response{}, errors.New("memory: recall requires a retrieval engine")
	}

	resp, err := e.retrieval.Ask(ctx, query, limit*4)
	if err != nil {
		return retrieval.Response{}, err
	}

	filtered := make([]retrieval.Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Kind != retrieval.KindNote {
			continue
		}
		var (
			note *relstore.NoteRecord
			err  error
		)
		if includeArchived {
			note, err = e.relStore.GetNoteAny(r.ID)
		} else {
			note, err = e.relStore.GetNote(r.ID)
		}
		if err != nil {
			return retrieval.Response{}, err
		}
		if note == nil {
			continue
		}
		if len(tagsFilter) > 0 && !hasAnyTag(note.Tags, tagsFilter) {
			continue
		}
		filtered = append(filtered, r)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	out := resp
	out.ModeRequested = mode
	out.Results = filtered
	out.ResultCount = len(filtered)
	return out, nil
}

func hasAnyTag(noteTags, filter []string) bool {
	set := make(map[string]struct{}, len(noteTags))
	for _, t := range noteTags {
		set[t] = struct{}{}
	}
	for _, t := range filter {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// normalizeWhitespace collapses runs of whitespace to a single space and
// trims the ends, so cosmetically different submissions of the same note
// ("foo  bar\n" vs "foo bar") hash identically.
func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func contentHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncateForEmbedding(s string) string {
	if len(s) <= maxEmbeddingChars {
		return s
	}
	return s[:maxEmbeddingChars]
}
