package retrieval

import (
	"context"
	"sort"
	"time"

	"aether/internal/symbol"
)

// semanticHit is an internal candidate carrying enough symbol metadata to
// apply the adaptive threshold and the ranking boost before it becomes a
// Result.
type semanticHit struct {
	symbolID   symbol.SymbolID
	similarity float64
}

// semanticCandidates embeds query, searches the vector store for the
// topM nearest neighbours, and returns them without applying any
// adaptive threshold, for internal reuse by HybridSearch, which needs the
// pre-threshold ranked list to fuse against the lexical one.
func (e *Engine) semanticCandidates(ctx context.Context, query string, topM int) ([]semanticHit, error) {
	if e.embedGen == nil || e.vectorStore == nil {
		return nil, nil
	}

	vectors, err := e.embedGen.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return nil, err
	}

	matches, err := e.vectorStore.SearchNearest(vectors[0], e.embedGen.Provider(), e.embedGen.Model(), topM)
	if err != nil {
		return nil, err
	}

	hits := make([]semanticHit, 0, len(matches))
	for _, m := range matches {
		id, err := symbol.ParseSymbolID(m.ID)
		if err != nil {
			continue // a note or other non-symbol vector id; semantic symbol search skips it
		}
		hits = append(hits, semanticHit{symbolID: id, similarity: m.Similarity})
	}
	return hits, nil
}

// SemanticSearch embeds query, searches the vector store for the topM
// nearest neighbours, and filters survivors by their language's adaptive
// similarity threshold.
func (e *Engine) SemanticSearch(ctx context.Context, query string, topM int) (Response, error) {
	hits, err := e.semanticCandidates(ctx, query, topM)
	if err != nil {
		return Response{}, err
	}

	now := time.Now()
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		sym, err := e.relStore.GetSymbol(h.symbolID)
		if err != nil {
			return Response{}, err
		}
		if sym == nil {
			continue
		}
		threshold := e.thresholdFor(sym.Language, e.embedGen.Provider(), e.embedGen.Model())
		if h.similarity < threshold {
			continue
		}

		snippet := ""
		if leaf, err := e.relStore.GetLeafSIR(h.symbolID); err == nil && leaf != nil {
			snippet = leaf.SIR.Intent
		}

		score := boostedScore(h.similarity, sym.AccessCount, sym.LastAccessedAt, now)
		e.touchAccess(h.symbolID.String(), func() error { return e.relStore.BumpAccess(h.symbolID, now) })

		results = append(results, Result{
			Kind: KindSymbol, ID: h.symbolID.String(), FilePath: sym.FilePath,
			Title: sym.QualifiedName, Snippet: snippet, Score: score,
		})
	}
	sortResultsByScoreDesc(results)

	return newResponse(query, ModeSemantic, ModeSemantic, "", results), nil
}

func sortResultsByScoreDesc(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
