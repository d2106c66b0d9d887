package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aether/internal/aethererr"
	"aether/internal/logging"
	"aether/internal/sir"
	"aether/internal/symbol"
)

// maxSurroundingContextBytes bounds how much of a file's raw content is sent
// alongside a single symbol's text as generation context, so a pathologically
// large file doesn't blow up a single inference request.
const maxSurroundingContextBytes = 8000

// IndexResult summarizes one IndexFile call, for callers (CLI, watch loop,
// tests) that want to report what changed.
type IndexResult struct {
	FilePath      string
	SymbolsAdded  int
	SymbolsUpdated int
	SymbolsRemoved int
	SIRGenerated  int
	SIRFailed     int
	ParseErrors   int
}

// IndexFile runs the full per-file pipeline: parse, diff against the
// relational store's current symbol set, commit the file's symbols/edges/
// test intents in one transaction, regenerate SIR for every added or
// changed symbol, embed and upsert each successful SIR, aggregate the
// file-level SIR, and resolve edges into the graph store. Only one
// IndexFile call is ever active for a given path at a time.
func (o *Orchestrator) IndexFile(ctx context.Context, path string, content []byte) (*IndexResult, error) {
	lock := o.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	parsed, err := o.parsers.Parse(path, content)
	if err != nil {
		logging.Orchestrator("parse failed for %s, keeping last-good state: %v", path, err)
		return nil, fmt.Errorf("%w: parse %s: %v", aethererr.ErrParseFailure, path, err)
	}
	if len(parsed.Errors) > 0 && len(parsed.Symbols) == 0 {
		logging.Orchestrator("parse failed for %s, keeping last-good state: %s", path, parsed.Errors[0].Message)
		return nil, fmt.Errorf("%w: parse %s: %s", aethererr.ErrParseFailure, path, parsed.Errors[0].Message)
	}

	current := make([]symbol.Symbol, len(parsed.Symbols))
	for i, sym := range parsed.Symbols {
		current[i] = sym.WithID()
	}

	previous, err := o.relStore.SymbolsForFile(path)
	if err != nil {
		return nil, err
	}

	added, removed, updated, err := symbol.Diff(previous, current)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: diff %s: %w", path, err)
	}

	if err := o.relStore.ApplyFileIndex(path, current, parsed.Edges, parsed.TestIntents); err != nil {
		return nil, err
	}

	result := &IndexResult{
		FilePath:       path,
		SymbolsAdded:   len(added),
		SymbolsUpdated: len(updated),
		SymbolsRemoved: len(removed),
		ParseErrors:    len(parsed.Errors),
	}

	changed := append(append([]symbol.Symbol{}, added...), updated...)
	for _, sym := range changed {
		if o.regenerateSIR(ctx, sym, content) {
			result.SIRGenerated++
		} else {
			result.SIRFailed++
		}
	}

	if err := o.aggregateAndMirrorFileSIR(path); err != nil {
		logging.Orchestrator("file-level sir aggregation failed for %s: %v", path, err)
	}

	o.resolveEdgesForFile(path, current, parsed.Edges)

	return result, nil
}

// regenerateSIR produces and stores a new SIR for sym, embedding it into
// the vector store on success. A failure never disturbs the previously
// stored SIR: only sir_status/last_error/last_attempt_at change, per the
// failure-preservation contract.
func (o *Orchestrator) regenerateSIR(ctx context.Context, sym symbol.Symbol, fileContent []byte) bool {
	symbolText := extractSymbolText(fileContent, sym)
	surrounding := truncate(string(fileContent), maxSurroundingContextBytes)

	record, err := o.sirGen.GenerateValidated(ctx, symbolText, surrounding)
	if err != nil {
		logging.OrchestratorDebug("sir generation failed for %s: %v", sym.ID, err)
		if markErr := o.relStore.MarkStale(sym.ID, err.Error(), time.Now()); markErr != nil {
			logging.Orchestrator("failed to mark %s stale: %v", sym.ID, markErr)
		}
		return false
	}

	canonical, err := sir.Canonicalize(record)
	if err != nil {
		logging.Orchestrator("canonicalize sir for %s: %v", sym.ID, err)
		return false
	}
	hash := sir.HashBytes(canonical)

	commitHash := ""
	if o.vcsReader != nil {
		if head, headErr := o.vcsReader.Head(); headErr == nil {
			commitHash = head
		}
	}

	if err := o.relStore.PutSIR(sym.ID, record, hash, string(canonical), commitHash); err != nil {
		logging.Orchestrator("put_sir failed for %s: %v", sym.ID, err)
		return false
	}

	if o.embedGen != nil && o.vectorStore != nil {
		vectors, err := o.embedGen.Embed(ctx, []string{record.Intent})
		if err != nil || len(vectors) == 0 {
			logging.OrchestratorDebug("embedding failed for %s: %v", sym.ID, err)
		} else if err := o.vectorStore.Upsert(sym.ID.String(), vectors[0], o.embedGen.Provider(), o.embedGen.Model()); err != nil {
			logging.Orchestrator("vector upsert failed for %s: %v", sym.ID, err)
		}
	}

	return true
}

// aggregateAndMirrorFileSIR recomputes the file-level rollup and, if
// configured, mirrors it to .aether/sir/<id>.json. Aggregation itself is
// always computed on demand by relstore.GetFileSIR from stored leaf SIRs;
// this call exists to warm that rollup immediately after indexing and to
// produce the advisory on-disk mirror.
func (o *Orchestrator) aggregateAndMirrorFileSIR(path string) error {
	rollup, err := o.relStore.GetFileSIR(path, o.summarizer())
	if err != nil {
		return err
	}
	if !o.cfg.Storage.MirrorSIRFiles || rollup.LeafCount == 0 {
		return nil
	}

	canonical, err := sir.Canonicalize(&rollup.SIR)
	if err != nil {
		return err
	}
	id := fileSIRID(o.languageFor(path), path)
	dir := filepath.Join(o.workspaceDir, ".aether", "sir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create sir mirror dir: %v", aethererr.ErrIOFailure, err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), canonical, 0o644); err != nil {
		return fmt.Errorf("%w: write sir mirror for %s: %v", aethererr.ErrIOFailure, path, err)
	}
	return nil
}

// languageFor returns the language identifier the registered parser for
// path reports, or "" if no parser claims path's extension.
func (o *Orchestrator) languageFor(path string) string {
	if p, ok := o.parsers.ParserFor(path); ok {
		return p.Language()
	}
	return ""
}

// fileSIRID is the on-disk mirror filename for a file-level SIR rollup:
// internal/sir.FileID, the same content-addressed identity §3 defines for
// a file_id, so a get_sir(file_id) lookup and the advisory mirror agree.
func fileSIRID(language, path string) string {
	return sir.FileID(language, path)
}

func extractSymbolText(content []byte, sym symbol.Symbol) string {
	if sym.StartByte < 0 || sym.EndByte > len(content) || sym.StartByte > sym.EndByte {
		return sym.QualifiedName
	}
	return string(content[sym.StartByte:sym.EndByte])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
