package relstore

import (
	"fmt"
	"sort"
	"strings"

	"aether/internal/aethererr"
	"aether/internal/symbol"
)

// LexicalMatch is one ranked hit from SearchLexical.
type LexicalMatch struct {
	SymbolID      symbol.SymbolID
	QualifiedName string
	FilePath      string
	Kind          symbol.Kind
	MatchKind     string // "exact_qualified_name", "prefix", "substring"
}

// lexical match tiers, lowest value ranks first.
const (
	rankExact = iota
	rankPrefix
	rankSubstring
)

// SymbolIDsForQualifiedName returns every symbol_id currently stored under
// the exact qualifiedName, for the orchestrator's edge-resolution pass (a
// name can be ambiguous across files/languages; callers push an edge to
// every match rather than guessing).
func (s *Store) SymbolIDsForQualifiedName(qualifiedName string) ([]symbol.SymbolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id FROM symbols WHERE qualified_name = ?`, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("%w: query symbols for qualified_name %s: %v", aethererr.ErrStoreTransactional, qualifiedName, err)
	}
	defer rows.Close()

	var out []symbol.SymbolID
	for rows.Next() {
		var hexID string
		if err := rows.Scan(&hexID); err != nil {
			return nil, fmt.Errorf("%w: scan symbol id: %v", aethererr.ErrStoreTransactional, err)
		}
		id, err := symbolIDFromHex(hexID)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// SearchLexical ranks symbols by qualified-name match against query: exact
// match first, then prefix match, then substring match. Ties within a tier
// are broken by qualified_name then symbol_id, both ascending, for stable
// output across runs.
func (s *Store) SearchLexical(query string, limit int) ([]LexicalMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id, qualified_name, file_path, kind FROM symbols
		WHERE qualified_name LIKE ? ESCAPE '\' ORDER BY qualified_name, symbol_id`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("%w: search lexical: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var candidates []LexicalMatch
	for rows.Next() {
		var idHex, qname, file, kind string
		if err := rows.Scan(&idHex, &qname, &file, &kind); err != nil {
			return nil, fmt.Errorf("%w: scan lexical row: %v", aethererr.ErrStoreTransactional, err)
		}
		id, err := symbolIDFromHex(idHex)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, LexicalMatch{
			SymbolID: id, QualifiedName: qname, FilePath: file, Kind: symbol.Kind(kind),
			MatchKind: classifyMatch(qname, query),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lexicalLess(candidates[i], candidates[j])
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func classifyMatch(qualifiedName, query string) string {
	switch {
	case qualifiedName == query:
		return "exact_qualified_name"
	case strings.HasPrefix(qualifiedName, query):
		return "prefix"
	default:
		return "substring"
	}
}

func matchRank(matchKind string) int {
	switch matchKind {
	case "exact_qualified_name":
		return rankExact
	case "prefix":
		return rankPrefix
	default:
		return rankSubstring
	}
}

func lexicalLess(a, b LexicalMatch) bool {
	if ra, rb := matchRank(a.MatchKind), matchRank(b.MatchKind); ra != rb {
		return ra < rb
	}
	if a.QualifiedName != b.QualifiedName {
		return a.QualifiedName < b.QualifiedName
	}
	return a.SymbolID.String() < b.SymbolID.String()
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
