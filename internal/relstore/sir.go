package relstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"aether/internal/aethererr"
	"aether/internal/sir"
	"aether/internal/symbol"
)

// PutSIR atomically replaces the current SIR for symbolID. If hash differs
// from the prior stored hash, a sir_history row is appended in the same
// transaction; if equal, no history row is written (regeneration producing
// identical canonical JSON must not inflate history).
func (s *Store) PutSIR(symbolID symbol.SymbolID, record *sir.SIR, hash, canonicalJSON, commitHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sirJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("relstore: marshal sir for %s: %w", symbolID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin put_sir tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	var priorHash string
	err = tx.QueryRow(`SELECT sir_hash FROM sir WHERE symbol_id = ?`, symbolID.String()).Scan(&priorHash)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("%w: read prior sir hash: %v", aethererr.ErrStoreTransactional, err)
	}

	_, err = tx.Exec(`
		INSERT INTO sir (symbol_id, sir_json, sir_hash, sir_status, last_error, last_attempt_at, updated_at)
		VALUES (?, ?, ?, 'ok', NULL, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol_id) DO UPDATE SET
			sir_json = excluded.sir_json,
			sir_hash = excluded.sir_hash,
			sir_status = 'ok',
			last_error = NULL,
			last_attempt_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
	`, symbolID.String(), string(sirJSON), hash)
	if err != nil {
		return fmt.Errorf("%w: upsert sir for %s: %v", aethererr.ErrStoreTransactional, symbolID, err)
	}

	if priorHash != hash {
		var commit interface{}
		if commitHash != "" {
			commit = commitHash
		}
		// created_at is stamped from Go's clock rather than CURRENT_TIMESTAMP:
		// SQLite's CURRENT_TIMESTAMP only has second-level granularity, which
		// lets two history rows for the same symbol tie when regenerated
		// within the same wall-clock second, violating the strictly
		// increasing created_at history invariant.
		_, err = tx.Exec(`INSERT INTO sir_history (symbol_id, sir_hash, canonical_json, created_at, commit_hash)
			VALUES (?, ?, ?, ?, ?)`, symbolID.String(), hash, canonicalJSON, time.Now().UTC(), commit)
		if err != nil {
			return fmt.Errorf("%w: insert sir_history for %s: %v", aethererr.ErrStoreTransactional, symbolID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit put_sir tx: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// MarkStale records an inference failure against symbolID without
// disturbing its last-good SIR.
func (s *Store) MarkStale(symbolID symbol.SymbolID, lastError string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sir (symbol_id, sir_json, sir_hash, sir_status, last_error, last_attempt_at, updated_at)
		VALUES (?, '{}', '', 'stale', ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol_id) DO UPDATE SET
			sir_status = 'stale',
			last_error = excluded.last_error,
			last_attempt_at = excluded.last_attempt_at,
			updated_at = CURRENT_TIMESTAMP
	`, symbolID.String(), lastError, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: mark stale for %s: %v", aethererr.ErrStoreTransactional, symbolID, err)
	}
	return nil
}

// LeafSIR is a stored leaf SIR row alongside its status bookkeeping.
type LeafSIR struct {
	SymbolID      symbol.SymbolID
	SIR           sir.SIR
	Hash          string
	Status        string
	LastError     string
	LastAttemptAt *time.Time
	UpdatedAt     time.Time
}

// GetLeafSIR reads the current SIR for one symbol, or (nil, nil) if none
// has been generated yet.
func (s *Store) GetLeafSIR(symbolID symbol.SymbolID) (*LeafSIR, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT sir_json, sir_hash, sir_status, last_error, last_attempt_at, updated_at
		FROM sir WHERE symbol_id = ?`, symbolID.String())

	var sirJSON, hash, status string
	var lastError sql.NullString
	var lastAttemptAt sql.NullTime
	var updatedAt time.Time
	if err := row.Scan(&sirJSON, &hash, &status, &lastError, &lastAttemptAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get leaf sir for %s: %v", aethererr.ErrStoreTransactional, symbolID, err)
	}

	var parsed sir.SIR
	if err := json.Unmarshal([]byte(sirJSON), &parsed); err != nil {
		return nil, fmt.Errorf("relstore: unmarshal stored sir for %s: %w", symbolID, err)
	}

	out := &LeafSIR{SymbolID: symbolID, SIR: parsed, Hash: hash, Status: status, UpdatedAt: updatedAt}
	if lastError.Valid {
		out.LastError = lastError.String
	}
	if lastAttemptAt.Valid {
		out.LastAttemptAt = &lastAttemptAt.Time
	}
	return out, nil
}

// GetFileSIR performs on-demand aggregation of every symbol's leaf SIR in
// filePath, per internal/sir.AggregateFile. Symbols without a stored SIR
// are skipped.
func (s *Store) GetFileSIR(filePath string, summarizer sir.Summarizer) (sir.FileRollup, error) {
	s.mu.RLock()
	ids, err := s.symbolIDsForFile(filePath)
	s.mu.RUnlock()
	if err != nil {
		return sir.FileRollup{}, err
	}

	var leaves []sir.SIR
	for _, id := range ids {
		leaf, err := s.GetLeafSIR(id)
		if err != nil {
			return sir.FileRollup{}, err
		}
		if leaf != nil {
			leaves = append(leaves, leaf.SIR)
		}
	}
	return sir.AggregateFile(leaves, summarizer)
}

// GetModuleSIR performs on-demand aggregation over every distinct file
// under dirPrefix, per internal/sir.AggregateModule.
func (s *Store) GetModuleSIR(dirPrefix string, summarizer sir.Summarizer) (sir.ModuleRollup, error) {
	s.mu.RLock()
	rows, err := s.db.Query(`SELECT DISTINCT file_path FROM symbols WHERE file_path LIKE ?`, strings.TrimSuffix(dirPrefix, "/")+"/%")
	s.mu.RUnlock()
	if err != nil {
		return sir.ModuleRollup{}, fmt.Errorf("%w: list module files: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return sir.ModuleRollup{}, fmt.Errorf("%w: scan module file: %v", aethererr.ErrStoreTransactional, err)
		}
		files = append(files, f)
	}

	var fileSIRs []*sir.SIR
	for _, f := range files {
		rollup, err := s.GetFileSIR(f, summarizer)
		if err != nil {
			return sir.ModuleRollup{}, err
		}
		if rollup.LeafCount == 0 {
			fileSIRs = append(fileSIRs, nil)
			continue
		}
		copied := rollup.SIR
		fileSIRs = append(fileSIRs, &copied)
	}
	return sir.AggregateModule(fileSIRs, summarizer)
}

// SIRLookup is the result of a GetSIR dispatch: exactly one of Leaf, File,
// or Module is set, per which content-addressed id form id matched.
type SIRLookup struct {
	Level  sir.Level
	Leaf   *LeafSIR
	File   *sir.FileRollup
	Module *sir.ModuleRollup
}

// GetSIR resolves id against whichever of AETHER's three content-addressed
// SIR identities it is — symbol_id, file_id, or module_id — trying each in
// turn, per §4.5's get_sir(symbol_id | file_id | module_id) contract.
// file_id and module_id are BLAKE3 digests of (language, path) and
// (language, dir) respectively and so cannot be inverted back to a path;
// instead this recomputes sir.FileID/sir.ModuleID for every (language,
// path) and (language, dir) pair currently indexed and compares against
// id. That scan is proportional to the indexed file/directory count, which
// is local-repo scale, not a hot path — GetSIR is a query-time lookup, not
// something indexing calls per file.
func (s *Store) GetSIR(id string, summarizer sir.Summarizer) (*SIRLookup, error) {
	if symbolID, err := symbol.ParseSymbolID(id); err == nil {
		leaf, err := s.GetLeafSIR(symbolID)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			return &SIRLookup{Level: sir.LevelLeaf, Leaf: leaf}, nil
		}
	}

	files, err := s.distinctFileLanguages()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if sir.FileID(f.Language, f.FilePath) == id {
			rollup, err := s.GetFileSIR(f.FilePath, summarizer)
			if err != nil {
				return nil, err
			}
			return &SIRLookup{Level: sir.LevelFile, File: &rollup}, nil
		}
	}

	dirs, err := s.distinctModuleDirs()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if sir.ModuleID(d.Language, d.Dir) == id {
			rollup, err := s.GetModuleSIR(d.Dir, summarizer)
			if err != nil {
				return nil, err
			}
			return &SIRLookup{Level: sir.LevelModule, Module: &rollup}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", aethererr.ErrSIRNotFound, id)
}

type fileLanguage struct {
	Language string
	FilePath string
}

// distinctFileLanguages returns every distinct (language, file_path) pair
// currently on record, the candidate set GetSIR matches a file_id against.
func (s *Store) distinctFileLanguages() ([]fileLanguage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT language, file_path FROM symbols`)
	if err != nil {
		return nil, fmt.Errorf("%w: list distinct files: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []fileLanguage
	for rows.Next() {
		var f fileLanguage
		if err := rows.Scan(&f.Language, &f.FilePath); err != nil {
			return nil, fmt.Errorf("%w: scan distinct file: %v", aethererr.ErrStoreTransactional, err)
		}
		out = append(out, f)
	}
	return out, nil
}

type moduleDir struct {
	Language string
	Dir      string
}

// distinctModuleDirs returns every distinct (language, directory) pair
// derivable from the indexed files — every ancestor directory of every
// file path, paired with that file's language — the candidate set GetSIR
// matches a module_id against.
func (s *Store) distinctModuleDirs() ([]moduleDir, error) {
	files, err := s.distinctFileLanguages()
	if err != nil {
		return nil, err
	}

	seen := make(map[moduleDir]bool)
	var out []moduleDir
	for _, f := range files {
		dir := path.Dir(f.FilePath)
		for dir != "." && dir != "/" && dir != "" {
			key := moduleDir{Language: f.Language, Dir: dir}
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
			parent := path.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return out, nil
}

// SIRHistoryEntry is one immutable sir_history row: a past version of a
// symbol's SIR, kept forever once its hash first differs from the prior
// stored version.
type SIRHistoryEntry struct {
	SymbolID      symbol.SymbolID
	SIR           sir.SIR
	Hash          string
	CanonicalJSON string
	CreatedAt     time.Time
	CommitHash    string
}

// SIRHistoryForSymbol returns every historical version of symbolID's SIR,
// ascending by created_at — the timeline a historian "why changed" query
// diffs consecutive pairs of, and drift/intent-verify use to find the
// version closest to a window boundary.
func (s *Store) SIRHistoryForSymbol(symbolID symbol.SymbolID) ([]SIRHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT symbol_id, sir_hash, canonical_json, created_at, commit_hash
		FROM sir_history WHERE symbol_id = ? ORDER BY created_at ASC`, symbolID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: query sir history for %s: %v", aethererr.ErrStoreTransactional, symbolID, err)
	}
	defer rows.Close()

	var out []SIRHistoryEntry
	for rows.Next() {
		var hexID, hash, canonicalJSON string
		var createdAt time.Time
		var commitHash sql.NullString
		if err := rows.Scan(&hexID, &hash, &canonicalJSON, &createdAt, &commitHash); err != nil {
			return nil, fmt.Errorf("%w: scan sir history row: %v", aethererr.ErrStoreTransactional, err)
		}
		var parsed sir.SIR
		if jsonErr := json.Unmarshal([]byte(canonicalJSON), &parsed); jsonErr != nil {
			return nil, fmt.Errorf("relstore: unmarshal sir history canonical json for %s: %w", hexID, jsonErr)
		}
		entry := SIRHistoryEntry{SymbolID: symbolID, SIR: parsed, Hash: hash, CanonicalJSON: canonicalJSON, CreatedAt: createdAt}
		if commitHash.Valid {
			entry.CommitHash = commitHash.String
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) symbolIDsForFile(filePath string) ([]symbol.SymbolID, error) {
	rows, err := s.db.Query(`SELECT symbol_id FROM symbols WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: list symbols for file: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var ids []symbol.SymbolID
	for rows.Next() {
		var hexID string
		if err := rows.Scan(&hexID); err != nil {
			return nil, fmt.Errorf("%w: scan symbol id: %v", aethererr.ErrStoreTransactional, err)
		}
		id, err := symbolIDFromHex(hexID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
