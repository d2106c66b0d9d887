package retrieval

import (
	"context"
	"sync"
	"time"

	"aether/internal/relstore"
)

// Ask runs the unified cross-kind query: parallel hybrid search over
// symbols and notes, a text search over test intents, and a graph lookup
// of files coupled to the top symbol result. Each kind's raw scores are
// normalized to [0,1] independently, the normalized per-kind ranked lists
// are fused via RRF, and the fused result is recency/access boosted.
func (e *Engine) Ask(ctx context.Context, query string, limit int) (Response, error) {
	var (
		wg                          sync.WaitGroup
		symbolResults, noteResults  []Result
		testIntentResults           []Result
		symbolErr, noteErr, testErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		symbolResults, symbolErr = e.fusedSymbolResults(ctx, query, limit*4, false)
	}()
	go func() {
		defer wg.Done()
		noteResults, noteErr = e.hybridNoteSearch(ctx, query, limit*4)
	}()
	go func() {
		defer wg.Done()
		testIntentResults, testErr = e.testIntentSearch(query, limit*4)
	}()
	wg.Wait()

	if symbolErr != nil {
		return Response{}, symbolErr
	}
	if noteErr != nil {
		return Response{}, noteErr
	}
	if testErr != nil {
		return Response{}, testErr
	}

	fileResults := e.coupledFileResults(symbolResults)

	combined := normalizeAndTag(symbolResults)
	combined = append(combined, normalizeAndTag(noteResults)...)
	combined = append(combined, normalizeAndTag(testIntentResults)...)
	combined = append(combined, normalizeAndTag(fileResults)...)

	lists := groupByKindAsRankedLists(combined)
	fused := fuseRRF(lists...)
	ordered := sortByScoreDesc(fused)

	byKey := make(map[string]Result, len(combined))
	for _, r := range combined {
		byKey[kindKey(r)] = r
	}

	now := time.Now()
	results := make([]Result, 0, len(ordered))
	for _, key := range ordered {
		r, ok := byKey[key]
		if !ok {
			continue
		}
		r.Score = e.boostForKind(r, fused[key], now)
		results = append(results, r)
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return newResponse(query, ModeAsk, ModeAsk, "", results), nil
}

// hybridNoteSearch fuses lexical substring matches and semantic vector
// hits over project notes, mirroring HybridSearch's RRF combination for
// the symbol kind.
func (e *Engine) hybridNoteSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	lexNotes, err := e.relStore.RecallNotes(query, limit)
	if err != nil {
		return nil, err
	}
	lexList := make(rankedList, len(lexNotes))
	byID := make(map[string]Result, len(lexNotes))
	for i, n := range lexNotes {
		lexList[i] = n.NoteID
		byID[n.NoteID] = noteToResult(n)
	}

	var semList rankedList
	if e.embedGen != nil && e.vectorStore != nil {
		vectors, err := e.embedGen.Embed(ctx, []string{query})
		if err == nil && len(vectors) > 0 {
			matches, err := e.vectorStore.SearchNearest(vectors[0], e.embedGen.Provider(), e.embedGen.Model(), limit)
			if err == nil {
				for _, m := range matches {
					note, err := e.relStore.GetNote(m.ID)
					if err != nil || note == nil {
						continue // not a note vector (likely a symbol)
					}
					semList = append(semList, m.ID)
					if _, ok := byID[m.ID]; !ok {
						byID[m.ID] = noteToResult(*note)
					}
				}
			}
		}
	}

	fused := fuseRRF(lexList, semList)
	now := time.Now()
	results := make([]Result, 0, len(fused))
	for id, score := range fused {
		r, ok := byID[id]
		if !ok {
			continue
		}
		r.Score = score
		if note, err := e.relStore.GetNote(id); err == nil && note != nil {
			r.Score = boostedScore(score, note.AccessCount, note.LastAccessedAt, now)
			e.touchAccess("note:"+id, func() error { return e.relStore.BumpNoteAccess(id, now) })
		}
		results = append(results, r)
	}
	sortResultsByScoreDesc(results)
	return results, nil
}

func noteToResult(n relstore.NoteRecord) Result {
	return Result{Kind: KindNote, ID: n.NoteID, Title: n.Content}
}

// testIntentSearch performs a plain text search over test intents; no
// semantic path exists for test intents, which have no embedding.
func (e *Engine) testIntentSearch(query string, limit int) ([]Result, error) {
	matches, err := e.relStore.SearchTestIntents(query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(matches))
	for i, m := range matches {
		raw := 1.0 / float64(i+1)
		results[i] = Result{
			Kind: KindTestIntent, ID: m.FilePath + "#" + m.TestName, FilePath: m.FilePath,
			Title: m.TestName, Snippet: m.IntentText, Score: raw,
		}
	}
	return results, nil
}

// coupledFileResults surfaces the files of symbols coupled (by resolved
// graph edge) to the single highest-ranked symbol result, if any.
func (e *Engine) coupledFileResults(symbolResults []Result) []Result {
	if len(symbolResults) == 0 || e.graphStore == nil {
		return nil
	}
	top := symbolResults[0]
	id, err := parseSymbolIDOrSkip(top.ID)
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{top.FilePath: {}}
	var out []Result

	deps, err := e.graphStore.Dependencies(id)
	if err == nil {
		for i, d := range deps {
			if _, ok := seen[d.FilePath]; ok {
				continue
			}
			seen[d.FilePath] = struct{}{}
			out = append(out, Result{Kind: KindFile, ID: d.FilePath, FilePath: d.FilePath, Title: d.FilePath, Score: 1.0 / float64(i+1)})
		}
	}
	callers, err := e.graphStore.Callers(top.Title)
	if err == nil {
		for i, c := range callers {
			if _, ok := seen[c.FilePath]; ok {
				continue
			}
			seen[c.FilePath] = struct{}{}
			out = append(out, Result{Kind: KindFile, ID: c.FilePath, FilePath: c.FilePath, Title: c.FilePath, Score: 1.0 / float64(i+1)})
		}
	}
	return out
}

// normalizeAndTag min-max normalizes a kind's raw scores to [0,1] (a
// single-element or all-equal list normalizes to 1.0 for every element,
// since there's no spread to scale against).
func normalizeAndTag(results []Result) []Result {
	if len(results) == 0 {
		return results
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	out := make([]Result, len(results))
	copy(out, results)
	if max == min {
		for i := range out {
			out[i].Score = 1.0
		}
		return out
	}
	for i := range out {
		out[i].Score = (out[i].Score - min) / (max - min)
	}
	return out
}

func kindKey(r Result) string { return string(r.Kind) + ":" + r.ID }

// groupByKindAsRankedLists splits combined (already normalized) results
// back into one ranked list per kind, ordered by normalized score
// descending, for RRF fusion across kinds.
func groupByKindAsRankedLists(combined []Result) []rankedList {
	byKind := make(map[Kind][]Result)
	for _, r := range combined {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}
	var lists []rankedList
	for _, group := range byKind {
		sortResultsByScoreDesc(group)
		list := make(rankedList, len(group))
		for i, r := range group {
			list[i] = kindKey(r)
		}
		lists = append(lists, list)
	}
	return lists
}

func (e *Engine) boostForKind(r Result, fusedScore float64, now time.Time) float64 {
	switch r.Kind {
	case KindSymbol:
		id, err := parseSymbolIDOrSkip(r.ID)
		if err != nil {
			return fusedScore
		}
		sym, err := e.relStore.GetSymbol(id)
		if err != nil || sym == nil {
			return fusedScore
		}
		return boostedScore(fusedScore, sym.AccessCount, sym.LastAccessedAt, now)
	case KindNote:
		note, err := e.relStore.GetNote(r.ID)
		if err != nil || note == nil {
			return fusedScore
		}
		return boostedScore(fusedScore, note.AccessCount, note.LastAccessedAt, now)
	default:
		return fusedScore
	}
}
