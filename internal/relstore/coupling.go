package relstore

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/aethererr"
)

// CouplingPair is one ordered file pair's co-change count, the raw signal
// the temporal coupling miner accumulates from VCS history before §4.11.1's
// scoring formula is applied on top.
type CouplingPair struct {
	FileA         string
	FileB         string
	CoChangeCount int
	UpdatedAt     time.Time
}

// orderedPair normalizes a file pair so file_a < file_b always, matching the
// temporal miner's "for each ordered pair (a,b) with a<b" contract.
func orderedPair(fileA, fileB string) (string, string) {
	if fileA <= fileB {
		return fileA, fileB
	}
	return fileB, fileA
}

// IncrementCoChange bumps the co-change counter for a file pair by one,
// inserting the row if this is its first co-change.
func (s *Store) IncrementCoChange(fileA, fileB string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := orderedPair(fileA, fileB)
	_, err := s.db.Exec(`INSERT INTO coupling_pairs (file_a, file_b, co_change_count, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(file_a, file_b) DO UPDATE SET co_change_count = co_change_count + 1, updated_at = CURRENT_TIMESTAMP`,
		a, b)
	if err != nil {
		return fmt.Errorf("%w: increment co-change for %s/%s: %v", aethererr.ErrStoreTransactional, a, b, err)
	}
	return nil
}

// IncrementFileCommitCount bumps file's total commit count by one,
// inserting the row if this is its first observed commit.
func (s *Store) IncrementFileCommitCount(file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO file_commit_counts (file_path, commit_count) VALUES (?, 1)
		ON CONFLICT(file_path) DO UPDATE SET commit_count = commit_count + 1`, file)
	if err != nil {
		return fmt.Errorf("%w: increment commit count for %s: %v", aethererr.ErrStoreTransactional, file, err)
	}
	return nil
}

// FileCommitCount returns the total number of mined commits that touched
// file, or 0 if it has never been observed.
func (s *Store) FileCommitCount(file string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT commit_count FROM file_commit_counts WHERE file_path = ?`, file).Scan(&count)
	switch err {
	case sql.ErrNoRows:
		return 0, nil
	case nil:
		return count, nil
	default:
		return 0, fmt.Errorf("%w: get commit count for %s: %v", aethererr.ErrStoreTransactional, file, err)
	}
}

// CoChangeCount returns the co-change counter for a file pair, or 0 if the
// pair has never co-changed.
func (s *Store) CoChangeCount(fileA, fileB string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, b := orderedPair(fileA, fileB)
	var count int
	err := s.db.QueryRow(`SELECT co_change_count FROM coupling_pairs WHERE file_a = ? AND file_b = ?`, a, b).Scan(&count)
	switch err {
	case sql.ErrNoRows:
		return 0, nil
	case nil:
		return count, nil
	default:
		return 0, fmt.Errorf("%w: get co-change count for %s/%s: %v", aethererr.ErrStoreTransactional, a, b, err)
	}
}

// CouplingPairsAbove returns every file pair whose co_change_count meets or
// exceeds minCoChangeCount, the candidate set §4.11.1 scores and classifies.
func (s *Store) CouplingPairsAbove(minCoChangeCount int) ([]CouplingPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT file_a, file_b, co_change_count, updated_at FROM coupling_pairs WHERE co_change_count >= ? ORDER BY co_change_count DESC`, minCoChangeCount)
	if err != nil {
		return nil, fmt.Errorf("%w: query coupling pairs: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []CouplingPair
	for rows.Next() {
		var p CouplingPair
		if err := rows.Scan(&p.FileA, &p.FileB, &p.CoChangeCount, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan coupling pair: %v", aethererr.ErrStoreTransactional, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// CouplingPairsForFile returns every pair file participates in, for the
// "what is this file coupled to" dashboard query.
func (s *Store) CouplingPairsForFile(file string) ([]CouplingPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT file_a, file_b, co_change_count, updated_at FROM coupling_pairs
		WHERE file_a = ? OR file_b = ? ORDER BY co_change_count DESC`, file, file)
	if err != nil {
		return nil, fmt.Errorf("%w: query coupling pairs for file: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []CouplingPair
	for rows.Next() {
		var p CouplingPair
		if err := rows.Scan(&p.FileA, &p.FileB, &p.CoChangeCount, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan coupling pair: %v", aethererr.ErrStoreTransactional, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// CommunityMembership returns the community label each symbol was assigned
// to as of the last drift analysis run, for detecting boundary violations
// (an edge that now crosses communities it didn't cross previously).
func (s *Store) CommunityMembership() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id, community_label FROM community_membership`)
	if err != nil {
		return nil, fmt.Errorf("%w: query community membership: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("%w: scan community membership row: %v", aethererr.ErrStoreTransactional, err)
		}
		out[id] = label
	}
	return out, nil
}

// PutCommunityMembership atomically replaces the stored community
// membership snapshot with membership, the current run's partition.
func (s *Store) PutCommunityMembership(membership map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin community membership tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM community_membership`); err != nil {
		return fmt.Errorf("%w: clear community membership: %v", aethererr.ErrStoreTransactional, err)
	}
	for id, label := range membership {
		if _, err := tx.Exec(`INSERT INTO community_membership (symbol_id, community_label) VALUES (?, ?)`, id, label); err != nil {
			return fmt.Errorf("%w: insert community membership for %s: %v", aethererr.ErrStoreTransactional, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit community membership tx: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// AllFiles returns every distinct file_path known to the symbol table.
func (s *Store) AllFiles() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT file_path FROM symbols ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("%w: list all files: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("%w: scan file path: %v", aethererr.ErrStoreTransactional, err)
		}
		out = append(out, f)
	}
	return out, nil
}
