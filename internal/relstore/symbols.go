package relstore

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/aethererr"
	"aether/internal/symbol"
)

// UpsertSymbol inserts a new symbol or overwrites the non-identity fields
// of an existing one (identity fields are immutable once a symbol_id
// exists — a change to them is, by construction, a different symbol_id).
func (s *Store) UpsertSymbol(sym symbol.Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parentID interface{}
	if sym.ParentID != nil {
		parentID = sym.ParentID.String()
	}
	var lastAccessed interface{}
	if sym.LastAccessedAt != nil {
		lastAccessed = sym.LastAccessedAt.UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO symbols (symbol_id, language, file_path, qualified_name, kind, signature_hash, parent_id, access_count, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			language = excluded.language,
			file_path = excluded.file_path,
			qualified_name = excluded.qualified_name,
			kind = excluded.kind,
			signature_hash = excluded.signature_hash,
			parent_id = excluded.parent_id,
			access_count = excluded.access_count,
			last_accessed_at = excluded.last_accessed_at
	`, sym.ID.String(), sym.Language, sym.FilePath, sym.QualifiedName, string(sym.Kind),
		sym.SignatureFingerprint, parentID, sym.AccessCount, lastAccessed)
	if err != nil {
		return fmt.Errorf("%w: upsert symbol %s: %v", aethererr.ErrStoreTransactional, sym.ID, err)
	}
	return nil
}

// DeleteMissingSymbolsForFile deletes symbols previously stored for file
// whose symbol_id is not in keepIDs, cascading to their sir row (sir_history
// is append-only and is never deleted).
func (s *Store) DeleteMissingSymbolsForFile(file string, keepIDs []symbol.SymbolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin delete-missing tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT symbol_id FROM symbols WHERE file_path = ?`, file)
	if err != nil {
		return fmt.Errorf("%w: query existing symbols: %v", aethererr.ErrStoreTransactional, err)
	}
	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id.String()] = struct{}{}
	}
	var toDelete []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("%w: scan symbol row: %v", aethererr.ErrStoreTransactional, err)
		}
		if _, ok := keep[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	rows.Close()

	for _, id := range toDelete {
		if _, err := tx.Exec(`DELETE FROM sir WHERE symbol_id = ?`, id); err != nil {
			return fmt.Errorf("%w: delete sir for %s: %v", aethererr.ErrStoreTransactional, id, err)
		}
		if _, err := tx.Exec(`DELETE FROM symbols WHERE symbol_id = ?`, id); err != nil {
			return fmt.Errorf("%w: delete symbol %s: %v", aethererr.ErrStoreTransactional, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete-missing tx: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// SymbolsForFile returns every symbol currently stored for file, in no
// particular order, for the orchestrator's before/after diff.
func (s *Store) SymbolsForFile(file string) ([]symbol.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id, language, file_path, qualified_name, kind, signature_hash, parent_id, access_count, last_accessed_at FROM symbols WHERE file_path = ?`, file)
	if err != nil {
		return nil, fmt.Errorf("%w: query symbols for file %s: %v", aethererr.ErrStoreTransactional, file, err)
	}
	defer rows.Close()

	var out []symbol.Symbol
	for rows.Next() {
		var idHex, language, filePath, qualifiedName, kind, sigHash string
		var parentID, lastAccessed interface{}
		var accessCount int
		if err := rows.Scan(&idHex, &language, &filePath, &qualifiedName, &kind, &sigHash, &parentID, &accessCount, &lastAccessed); err != nil {
			return nil, fmt.Errorf("%w: scan symbol row: %v", aethererr.ErrStoreTransactional, err)
		}
		id, err := symbolIDFromHex(idHex)
		if err != nil {
			return nil, err
		}
		sym := symbol.Symbol{
			ID: id, Language: language, FilePath: filePath, QualifiedName: qualifiedName,
			Kind: symbol.Kind(kind), SignatureFingerprint: sigHash, AccessCount: accessCount,
		}
		if parentID != nil {
			pid, err := symbolIDFromHex(parentID.(string))
			if err != nil {
				return nil, err
			}
			sym.ParentID = &pid
		}
		if ts, ok := lastAccessed.(time.Time); ok {
			sym.LastAccessedAt = &ts
		}
		out = append(out, sym)
	}
	return out, nil
}

// GetSymbol reads one symbol by ID, or (nil, nil) if it no longer exists —
// used by the retrieval engine to read the access/recency fields a ranked
// hit needs for boosting.
func (s *Store) GetSymbol(id symbol.SymbolID) (*symbol.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT symbol_id, language, file_path, qualified_name, kind, signature_hash, parent_id, access_count, last_accessed_at
		FROM symbols WHERE symbol_id = ?`, id.String())

	var idHex, language, filePath, qualifiedName, kind, sigHash string
	var parentID, lastAccessed interface{}
	var accessCount int
	if err := row.Scan(&idHex, &language, &filePath, &qualifiedName, &kind, &sigHash, &parentID, &accessCount, &lastAccessed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get symbol %s: %v", aethererr.ErrStoreTransactional, id, err)
	}

	sym := symbol.Symbol{
		ID: id, Language: language, FilePath: filePath, QualifiedName: qualifiedName,
		Kind: symbol.Kind(kind), SignatureFingerprint: sigHash, AccessCount: accessCount,
	}
	if parentID != nil {
		pid, err := symbolIDFromHex(parentID.(string))
		if err != nil {
			return nil, err
		}
		sym.ParentID = &pid
	}
	if ts, ok := lastAccessed.(time.Time); ok {
		sym.LastAccessedAt = &ts
	}
	return &sym, nil
}

// AllSymbols returns every symbol currently stored, for the graph-health
// dashboard's full-codebase sweep.
func (s *Store) AllSymbols() ([]symbol.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id, language, file_path, qualified_name, kind, signature_hash, parent_id, access_count, last_accessed_at FROM symbols`)
	if err != nil {
		return nil, fmt.Errorf("%w: list all symbols: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []symbol.Symbol
	for rows.Next() {
		var idHex, language, filePath, qualifiedName, kind, sigHash string
		var parentID, lastAccessed interface{}
		var accessCount int
		if err := rows.Scan(&idHex, &language, &filePath, &qualifiedName, &kind, &sigHash, &parentID, &accessCount, &lastAccessed); err != nil {
			return nil, fmt.Errorf("%w: scan symbol row: %v", aethererr.ErrStoreTransactional, err)
		}
		id, err := symbolIDFromHex(idHex)
		if err != nil {
			return nil, err
		}
		sym := symbol.Symbol{
			ID: id, Language: language, FilePath: filePath, QualifiedName: qualifiedName,
			Kind: symbol.Kind(kind), SignatureFingerprint: sigHash, AccessCount: accessCount,
		}
		if parentID != nil {
			pid, err := symbolIDFromHex(parentID.(string))
			if err != nil {
				return nil, err
			}
			sym.ParentID = &pid
		}
		if ts, ok := lastAccessed.(time.Time); ok {
			sym.LastAccessedAt = &ts
		}
		out = append(out, sym)
	}
	return out, nil
}

// SymbolIDsForLanguage returns every symbol_id currently stored for
// language, for the retrieval engine's per-language threshold calibration.
func (s *Store) SymbolIDsForLanguage(language string) ([]symbol.SymbolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id FROM symbols WHERE language = ?`, language)
	if err != nil {
		return nil, fmt.Errorf("%w: query symbols for language %s: %v", aethererr.ErrStoreTransactional, language, err)
	}
	defer rows.Close()

	var out []symbol.SymbolID
	for rows.Next() {
		var idHex string
		if err := rows.Scan(&idHex); err != nil {
			return nil, fmt.Errorf("%w: scan symbol id: %v", aethererr.ErrStoreTransactional, err)
		}
		id, err := symbolIDFromHex(idHex)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// BumpAccess increments a symbol's access_count and sets last_accessed_at.
func (s *Store) BumpAccess(id symbol.SymbolID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE symbols SET access_count = access_count + 1, last_accessed_at = ? WHERE symbol_id = ?`,
		at.UTC(), id.String())
	if err != nil {
		return fmt.Errorf("%w: bump access for %s: %v", aethererr.ErrStoreTransactional, id, err)
	}
	return nil
}
