package symbol

import "fmt"

// IdentityCollisionError is returned by Diff when the same SymbolID was
// produced by two different qualified names within a single extraction
// pass. This must never happen in practice; its presence indicates a
// parser bug (e.g. a hash collision in the identity tuple construction, or
// two symbols wrongly assigned identical identity fields).
type IdentityCollisionError struct {
	ID             SymbolID
	QualifiedNameA string
	QualifiedNameB string
}

func (e *IdentityCollisionError) Error() string {
	return fmt.Sprintf("identity collision on symbol_id %s: %q and %q both resolved to it",
		e.ID, e.QualifiedNameA, e.QualifiedNameB)
}

// Diff computes the set difference between a previous and current symbol
// set for one file, keyed by SymbolID. A symbol present in both sets is
// "updated" only if its byte range or parent differs; otherwise it is
// omitted entirely.
//
// Diff returns an *IdentityCollisionError if either input set contains two
// symbols sharing a SymbolID but differing qualified names.
func Diff(previous, current []Symbol) (added, removed, updated []Symbol, err error) {
	prevByID, perr := indexByID(previous)
	if perr != nil {
		return nil, nil, nil, perr
	}
	currByID, cerr := indexByID(current)
	if cerr != nil {
		return nil, nil, nil, cerr
	}

	for id, cur := range currByID {
		prev, ok := prevByID[id]
		if !ok {
			added = append(added, cur)
			continue
		}
		if differsNonIdentity(prev, cur) {
			updated = append(updated, cur)
		}
	}
	for id, prev := range prevByID {
		if _, ok := currByID[id]; !ok {
			removed = append(removed, prev)
		}
	}
	return added, removed, updated, nil
}

func indexByID(symbols []Symbol) (map[SymbolID]Symbol, error) {
	out := make(map[SymbolID]Symbol, len(symbols))
	for _, sym := range symbols {
		if existing, ok := out[sym.ID]; ok && existing.QualifiedName != sym.QualifiedName {
			return nil, &IdentityCollisionError{
				ID:             sym.ID,
				QualifiedNameA: existing.QualifiedName,
				QualifiedNameB: sym.QualifiedName,
			}
		}
		out[sym.ID] = sym
	}
	return out, nil
}

// differsNonIdentity reports whether cur differs from prev in byte range or
// parent. Access bookkeeping (AccessCount, LastAccessedAt) is not compared.
func differsNonIdentity(prev, cur Symbol) bool {
	if prev.StartByte != cur.StartByte || prev.EndByte != cur.EndByte {
		return true
	}
	if !equalParent(prev.ParentID, cur.ParentID) {
		return true
	}
	return false
}

func equalParent(a, b *SymbolID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
