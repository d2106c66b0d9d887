package retrieval

import "time"

// LexicalSearch ranks symbols by qualified-name match against query: exact
// match first, then prefix, then substring, with stable tie-breaking —
// internal/relstore.SearchLexical already implements the ranking, this
// wraps it into the shared response envelope and applies the
// recency/access boost.
func (e *Engine) LexicalSearch(query string, limit int) (Response, error) {
	matches, err := e.relStore.SearchLexical(query, limit)
	if err != nil {
		return Response{}, err
	}

	now := time.Now()
	results := make([]Result, 0, len(matches))
	for i, m := range matches {
		raw := 1.0 / float64(i+1)
		sym, err := e.relStore.GetSymbol(m.SymbolID)
		if err != nil {
			return Response{}, err
		}
		snippet := ""
		if leaf, err := e.relStore.GetLeafSIR(m.SymbolID); err == nil && leaf != nil {
			snippet = leaf.SIR.Intent
		}
		score := raw
		if sym != nil {
			score = boostedScore(raw, sym.AccessCount, sym.LastAccessedAt, now)
			e.touchAccess(m.SymbolID.String(), func() error { return e.relStore.BumpAccess(m.SymbolID, now) })
		}
		results = append(results, Result{
			Kind: KindSymbol, ID: m.SymbolID.String(), FilePath: m.FilePath,
			Title: m.QualifiedName, Snippet: snippet, Score: score,
		})
	}

	return newResponse(query, ModeLexical, ModeLexical, "", results), nil
}
