package relstore

import (
	"encoding/hex"
	"fmt"

	"aether/internal/aethererr"
	"aether/internal/parser"
	"aether/internal/symbol"
)

// ApplyFileIndex commits one file's post-parse state in a single
// transaction: upsert every current symbol, delete any previously stored
// symbol for file no longer present, replace the file's unresolved edges,
// and replace its test intents. This is the orchestrator's single
// cross-store write boundary into the relational store — the point at
// which a reader can never observe a partially-updated file.
func (s *Store) ApplyFileIndex(file string, symbols []symbol.Symbol, edges []parser.UnresolvedEdge, testIntents []parser.TestIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin apply-file-index tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	keep := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		keep[sym.ID.String()] = struct{}{}

		var parentID interface{}
		if sym.ParentID != nil {
			parentID = sym.ParentID.String()
		}
		var lastAccessed interface{}
		if sym.LastAccessedAt != nil {
			lastAccessed = sym.LastAccessedAt.UTC()
		}
		if _, err := tx.Exec(`
			INSERT INTO symbols (symbol_id, language, file_path, qualified_name, kind, signature_hash, parent_id, access_count, last_accessed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol_id) DO UPDATE SET
				language = excluded.language,
				file_path = excluded.file_path,
				qualified_name = excluded.qualified_name,
				kind = excluded.kind,
				signature_hash = excluded.signature_hash,
				parent_id = excluded.parent_id
		`, sym.ID.String(), sym.Language, sym.FilePath, sym.QualifiedName, string(sym.Kind),
			sym.SignatureFingerprint, parentID, sym.AccessCount, lastAccessed); err != nil {
			return fmt.Errorf("%w: upsert symbol %s: %v", aethererr.ErrStoreTransactional, sym.ID, err)
		}
	}

	rows, err := tx.Query(`SELECT symbol_id FROM symbols WHERE file_path = ?`, file)
	if err != nil {
		return fmt.Errorf("%w: query existing symbols for %s: %v", aethererr.ErrStoreTransactional, file, err)
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

	if _, err := tx.Exec(`DELETE FROM symbol_edges WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("%w: delete edges for %s: %v", aethererr.ErrStoreTransactional, file, err)
	}
	edgeStmt, err := tx.Prepare(`INSERT OR REPLACE INTO symbol_edges (source_id, target_qualified_name, edge_kind, file_path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare edge insert: %v", aethererr.ErrStoreTransactional, err)
	}
	for _, e := range edges {
		if _, err := edgeStmt.Exec(e.SourceID.String(), e.TargetQualifiedName, string(e.EdgeKind), e.FilePath); err != nil {
			edgeStmt.Close()
			return fmt.Errorf("%w: insert edge: %v", aethererr.ErrStoreTransactional, err)
		}
	}
	edgeStmt.Close()

	if _, err := tx.Exec(`DELETE FROM test_intents WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("%w: delete test intents for %s: %v", aethererr.ErrStoreTransactional, file, err)
	}
	tiStmt, err := tx.Prepare(`INSERT OR REPLACE INTO test_intents (intent_id, file_path, test_name, intent_text, group_label, language, symbol_id) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare test intent insert: %v", aethererr.ErrStoreTransactional, err)
	}
	for _, ti := range testIntents {
		id := ti.ID()
		var symID interface{}
		if ti.SymbolID != nil {
			symID = ti.SymbolID.String()
		}
		var groupLabel interface{}
		if ti.GroupLabel != "" {
			groupLabel = ti.GroupLabel
		}
		if _, err := tiStmt.Exec(hex.EncodeToString(id[:]), ti.FilePath, ti.TestName, ti.IntentText, groupLabel, ti.Language, symID); err != nil {
			tiStmt.Close()
			return fmt.Errorf("%w: insert test intent: %v", aethererr.ErrStoreTransactional, err)
		}
	}
	tiStmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit apply-file-index tx: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}
