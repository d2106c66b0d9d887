package relstore

import (
	"fmt"

	"aether/internal/aethererr"
	"aether/internal/parser"
)

// ReplaceEdgesForFile deletes every unresolved edge previously recorded for
// file and inserts edges in its place, transactionally — mirroring the
// teacher's delete-then-reinsert-for-file idiom for per-file derived data.
func (s *Store) ReplaceEdgesForFile(file string, edges []parser.UnresolvedEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin replace-edges tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbol_edges WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("%w: delete edges for %s: %v", aethererr.ErrStoreTransactional, file, err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO symbol_edges (source_id, target_qualified_name, edge_kind, file_path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare edge insert: %v", aethererr.ErrStoreTransactional, err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.Exec(e.SourceID.String(), e.TargetQualifiedName, string(e.EdgeKind), e.FilePath); err != nil {
			return fmt.Errorf("%w: insert edge: %v", aethererr.ErrStoreTransactional, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit replace-edges tx: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// UnresolvedEdgesByTarget returns every stored unresolved edge whose
// TargetQualifiedName matches targetName, for the orchestrator's
// edge-resolution pass.
func (s *Store) UnresolvedEdgesByTarget(targetName string) ([]parser.UnresolvedEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT source_id, target_qualified_name, edge_kind, file_path FROM symbol_edges WHERE target_qualified_name = ?`, targetName)
	if err != nil {
		return nil, fmt.Errorf("%w: query edges by target: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []parser.UnresolvedEdge
	for rows.Next() {
		var sourceHex, target, kind, file string
		if err := rows.Scan(&sourceHex, &target, &kind, &file); err != nil {
			return nil, fmt.Errorf("%w: scan edge row: %v", aethererr.ErrStoreTransactional, err)
		}
		sourceID, err := symbolIDFromHex(sourceHex)
		if err != nil {
			return nil, err
		}
		out = append(out, parser.UnresolvedEdge{
			SourceID: sourceID, TargetQualifiedName: target, EdgeKind: parser.EdgeKind(kind), FilePath: file,
		})
	}
	return out, nil
}

// AllUnresolvedEdges returns every stored unresolved edge, for a full
// edge-resolution sweep.
func (s *Store) AllUnresolvedEdges() ([]parser.UnresolvedEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT source_id, target_qualified_name, edge_kind, file_path FROM symbol_edges`)
	if err != nil {
		return nil, fmt.Errorf("%w: query all edges: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []parser.UnresolvedEdge
	for rows.Next() {
		var sourceHex, target, kind, file string
		if err := rows.Scan(&sourceHex, &target, &kind, &file); err != nil {
			return nil, fmt.Errorf("%w: scan edge row: %v", aethererr.ErrStoreTransactional, err)
		}
		sourceID, err := symbolIDFromHex(sourceHex)
		if err != nil {
			return nil, err
		}
		out = append(out, parser.UnresolvedEdge{
			SourceID: sourceID, TargetQualifiedName: target, EdgeKind: parser.EdgeKind(kind), FilePath: file,
		})
	}
	return out, nil
}
