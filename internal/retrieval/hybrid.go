package retrieval

import (
	"context"
	"sync"
	"time"
)

// HybridSearch runs lexical and semantic search in parallel and fuses
// their rankings via reciprocal-rank fusion, then applies the
// recency/access boost and, if configured, a reranker pass over the top
// rerank_window fused candidates.
func (e *Engine) HybridSearch(ctx context.Context, query string, limit int) (Response, error) {
	results, err := e.fusedSymbolResults(ctx, query, limit*4, true)
	if err != nil {
		return Response{}, err
	}

	modeUsed := ModeHybrid
	fallbackReason := ""
	if e.cfg != nil && e.cfg.Search.Reranker != "" && e.cfg.Search.Reranker != "none" && e.reranker != nil {
		reranked, rerankErr := e.rerank(ctx, query, results, e.cfg.Search.RerankWindow)
		if rerankErr != nil {
			fallbackReason = "reranker_failed: " + rerankErr.Error()
		} else {
			results = reranked
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return newResponse(query, ModeHybrid, modeUsed, fallbackReason, results), nil
}

func (e *Engine) lexicalRankedIDs(query string, limit int) ([]string, error) {
	matches, err := e.relStore.SearchLexical(query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.SymbolID.String()
	}
	return out, nil
}

// fusedSymbolResults runs lexical and semantic symbol search in parallel
// and fuses their rankings via reciprocal-rank fusion. boost controls
// whether the recency/access boost is applied here: HybridSearch (a
// directly callable search mode) passes true; Ask passes false since it
// applies its own centralized boost once, after fusing across all kinds.
func (e *Engine) fusedSymbolResults(ctx context.Context, query string, limit int, boost bool) ([]Result, error) {
	var (
		wg             sync.WaitGroup
		lexIDs         []string
		semHits        []semanticHit
		lexErr, semErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lexIDs, lexErr = e.lexicalRankedIDs(query, limit)
	}()
	go func() {
		defer wg.Done()
		semHits, semErr = e.semanticCandidates(ctx, query, limit)
	}()
	wg.Wait()

	if lexErr != nil {
		return nil, lexErr
	}
	if semErr != nil {
		return nil, semErr
	}

	lexList := rankedList(lexIDs)
	semList := make(rankedList, len(semHits))
	for i, h := range semHits {
		semList[i] = h.symbolID.String()
	}

	fused := fuseRRF(lexList, semList)
	ordered := sortByScoreDesc(fused)

	return e.buildSymbolResults(ordered, fused, boost)
}

// buildSymbolResults resolves an ordered list of symbol_id strings into
// Results. When boost is true (direct hybrid search) the recency/access
// boost is applied on top of each id's fused RRF score; when false (the
// unified ask query, which boosts once centrally after cross-kind fusion)
// the raw fused score is kept as-is.
func (e *Engine) buildSymbolResults(orderedIDs []string, fused map[string]float64, boost bool) ([]Result, error) {
	now := time.Now()
	results := make([]Result, 0, len(orderedIDs))
	for _, idStr := range orderedIDs {
		id, err := parseSymbolIDOrSkip(idStr)
		if err != nil {
			continue
		}
		sym, err := e.relStore.GetSymbol(id)
		if err != nil {
			return nil, err
		}
		if sym == nil {
			continue
		}
		snippet := ""
		if leaf, err := e.relStore.GetLeafSIR(id); err == nil && leaf != nil {
			snippet = leaf.SIR.Intent
		}
		score := fused[idStr]
		if boost {
			score = boostedScore(score, sym.AccessCount, sym.LastAccessedAt, now)
			e.touchAccess(idStr, func() error { return e.relStore.BumpAccess(id, now) })
		}
		results = append(results, Result{
			Kind: KindSymbol, ID: idStr, FilePath: sym.FilePath,
			Title: sym.QualifiedName, Snippet: snippet, Score: score,
		})
	}
	sortResultsByScoreDesc(results)
	return results, nil
}
