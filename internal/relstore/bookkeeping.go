package relstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aether/internal/aethererr"
)

// CouplingMiningState is the singleton checkpoint row the coupling miner
// resumes from between runs.
type CouplingMiningState struct {
	LastCommit     string
	LastMinedAt    *time.Time
	CommitsScanned int
}

// GetCouplingMiningState returns the zero-value state if mining has never
// run.
func (s *Store) GetCouplingMiningState() (CouplingMiningState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st CouplingMiningState
	var lastCommit sql.NullString
	var lastMinedAt sql.NullTime
	row := s.db.QueryRow(`SELECT last_commit, last_mined_at, commits_scanned FROM coupling_mining_state WHERE id = 1`)
	switch err := row.Scan(&lastCommit, &lastMinedAt, &st.CommitsScanned); err {
	case sql.ErrNoRows:
		return CouplingMiningState{}, nil
	case nil:
		st.LastCommit = lastCommit.String
		if lastMinedAt.Valid {
			st.LastMinedAt = &lastMinedAt.Time
		}
		return st, nil
	default:
		return st, fmt.Errorf("%w: get coupling mining state: %v", aethererr.ErrStoreTransactional, err)
	}
}

// PutCouplingMiningState upserts the singleton checkpoint row.
func (s *Store) PutCouplingMiningState(st CouplingMiningState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO coupling_mining_state (id, last_commit, last_mined_at, commits_scanned)
		VALUES (1, ?, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(id) DO UPDATE SET last_commit = excluded.last_commit, last_mined_at = excluded.last_mined_at, commits_scanned = excluded.commits_scanned`,
		st.LastCommit, st.CommitsScanned)
	if err != nil {
		return fmt.Errorf("%w: put coupling mining state: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// DriftAnalysisState is the singleton checkpoint row the drift analyzer
// resumes from between runs.
type DriftAnalysisState struct {
	LastAnalysisCommit string
	LastAnalysisAt      *time.Time
	SymbolsAnalyzed     int
	DriftDetected       bool
}

// GetDriftAnalysisState returns the zero-value state if drift analysis has
// never run.
func (s *Store) GetDriftAnalysisState() (DriftAnalysisState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st DriftAnalysisState
	var lastCommit sql.NullString
	var lastAt sql.NullTime
	var drifted int
	row := s.db.QueryRow(`SELECT last_analysis_commit, last_analysis_at, symbols_analyzed, drift_detected FROM drift_analysis_state WHERE id = 1`)
	switch err := row.Scan(&lastCommit, &lastAt, &st.SymbolsAnalyzed, &drifted); err {
	case sql.ErrNoRows:
		return DriftAnalysisState{}, nil
	case nil:
		st.LastAnalysisCommit = lastCommit.String
		if lastAt.Valid {
			st.LastAnalysisAt = &lastAt.Time
		}
		st.DriftDetected = drifted != 0
		return st, nil
	default:
		return st, fmt.Errorf("%w: get drift analysis state: %v", aethererr.ErrStoreTransactional, err)
	}
}

// PutDriftAnalysisState upserts the singleton checkpoint row.
func (s *Store) PutDriftAnalysisState(st DriftAnalysisState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drifted := 0
	if st.DriftDetected {
		drifted = 1
	}
	_, err := s.db.Exec(`INSERT INTO drift_analysis_state (id, last_analysis_commit, last_analysis_at, symbols_analyzed, drift_detected)
		VALUES (1, ?, CURRENT_TIMESTAMP, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_analysis_commit = excluded.last_analysis_commit, last_analysis_at = excluded.last_analysis_at,
			symbols_analyzed = excluded.symbols_analyzed, drift_detected = excluded.drift_detected`,
		st.LastAnalysisCommit, st.SymbolsAnalyzed, drifted)
	if err != nil {
		return fmt.Errorf("%w: put drift analysis state: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// DriftResult is one recorded divergence between a symbol's implementation
// and its last-known-good SIR.
type DriftResult struct {
	ResultID         string
	SymbolID         string
	FilePath         string
	DriftType        string
	DriftMagnitude   float64
	BaselineSirHash  string
	CurrentSirHash   string
	CommitRangeStart string
	CommitRangeEnd   string
	Detail           map[string]interface{}
	DetectedAt       time.Time
	IsAcknowledged   bool
}

// InsertDriftResult records a newly detected drift result.
func (s *Store) InsertDriftResult(d DriftResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailJSON, err := json.Marshal(d.Detail)
	if err != nil {
		return fmt.Errorf("relstore: marshal drift detail: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO drift_results
		(result_id, symbol_id, file_path, drift_type, drift_magnitude, baseline_sir_hash, current_sir_hash, commit_range_start, commit_range_end, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ResultID, d.SymbolID, d.FilePath, d.DriftType, d.DriftMagnitude, d.BaselineSirHash, d.CurrentSirHash,
		d.CommitRangeStart, d.CommitRangeEnd, string(detailJSON))
	if err != nil {
		return fmt.Errorf("%w: insert drift result: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// AcknowledgeDriftResult marks a drift result acknowledged, excluding it
// from future reports by default.
func (s *Store) AcknowledgeDriftResult(resultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE drift_results SET is_acknowledged = 1 WHERE result_id = ?`, resultID)
	if err != nil {
		return fmt.Errorf("%w: acknowledge drift result %s: %v", aethererr.ErrStoreTransactional, resultID, err)
	}
	return nil
}

// ListDriftResults returns recorded drift results, most recent first,
// excluding acknowledged ones unless includeAcknowledged is set.
func (s *Store) ListDriftResults(includeAcknowledged bool) ([]DriftResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT result_id, symbol_id, file_path, drift_type, drift_magnitude, baseline_sir_hash, current_sir_hash,
		commit_range_start, commit_range_end, detail_json, detected_at, is_acknowledged FROM drift_results`
	if !includeAcknowledged {
		query += ` WHERE is_acknowledged = 0`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: list drift results: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []DriftResult
	for rows.Next() {
		var d DriftResult
		var magnitude sql.NullFloat64
		var rangeStart, rangeEnd sql.NullString
		var detailJSON string
		var acknowledged int
		if err := rows.Scan(&d.ResultID, &d.SymbolID, &d.FilePath, &d.DriftType, &magnitude, &d.BaselineSirHash, &d.CurrentSirHash,
			&rangeStart, &rangeEnd, &detailJSON, &d.DetectedAt, &acknowledged); err != nil {
			return nil, fmt.Errorf("%w: scan drift result row: %v", aethererr.ErrStoreTransactional, err)
		}
		d.DriftMagnitude = magnitude.Float64
		d.CommitRangeStart = rangeStart.String
		d.CommitRangeEnd = rangeEnd.String
		d.IsAcknowledged = acknowledged != 0
		json.Unmarshal([]byte(detailJSON), &d.Detail)
		out = append(out, d)
	}
	return out, nil
}

// DriftResultsForSymbol returns every recorded drift result for a symbol,
// most recent first.
func (s *Store) DriftResultsForSymbol(symbolID string) ([]DriftResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT result_id, symbol_id, file_path, drift_type, drift_magnitude, baseline_sir_hash, current_sir_hash,
		commit_range_start, commit_range_end, detail_json, detected_at, is_acknowledged
		FROM drift_results WHERE symbol_id = ? ORDER BY detected_at DESC`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("%w: query drift results: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []DriftResult
	for rows.Next() {
		var d DriftResult
		var magnitude sql.NullFloat64
		var rangeStart, rangeEnd sql.NullString
		var detailJSON string
		var acknowledged int
		if err := rows.Scan(&d.ResultID, &d.SymbolID, &d.FilePath, &d.DriftType, &magnitude, &d.BaselineSirHash, &d.CurrentSirHash,
			&rangeStart, &rangeEnd, &detailJSON, &d.DetectedAt, &acknowledged); err != nil {
			return nil, fmt.Errorf("%w: scan drift result row: %v", aethererr.ErrStoreTransactional, err)
		}
		d.DriftMagnitude = magnitude.Float64
		d.CommitRangeStart = rangeStart.String
		d.CommitRangeEnd = rangeEnd.String
		d.IsAcknowledged = acknowledged != 0
		json.Unmarshal([]byte(detailJSON), &d.Detail)
		out = append(out, d)
	}
	return out, nil
}

// IntentSnapshot is a named, point-in-time capture of a set of symbols' SIR
// hashes, used as a drift-detection baseline.
type IntentSnapshot struct {
	SnapshotID string
	Label      string
	Scope      string
	Target     string
	Symbols    map[string]string // symbol_id -> sir_hash at capture time
	CreatedAt  time.Time
}

// InsertIntentSnapshot records a new baseline snapshot.
func (s *Store) InsertIntentSnapshot(snap IntentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbolsJSON, err := json.Marshal(snap.Symbols)
	if err != nil {
		return fmt.Errorf("relstore: marshal snapshot symbols: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO intent_snapshots (snapshot_id, label, scope, target, symbols_json) VALUES (?, ?, ?, ?, ?)`,
		snap.SnapshotID, snap.Label, snap.Scope, snap.Target, string(symbolsJSON))
	if err != nil {
		return fmt.Errorf("%w: insert intent snapshot: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// GetIntentSnapshot reads one snapshot by ID, or aethererr.ErrNoBaseline if
// it does not exist.
func (s *Store) GetIntentSnapshot(snapshotID string) (IntentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap IntentSnapshot
	var symbolsJSON string
	row := s.db.QueryRow(`SELECT snapshot_id, label, scope, target, symbols_json, created_at
		FROM intent_snapshots WHERE snapshot_id = ?`, snapshotID)
	err := row.Scan(&snap.SnapshotID, &snap.Label, &snap.Scope, &snap.Target, &symbolsJSON, &snap.CreatedAt)
	switch err {
	case sql.ErrNoRows:
		return IntentSnapshot{}, aethererr.ErrNoBaseline
	case nil:
		if jsonErr := json.Unmarshal([]byte(symbolsJSON), &snap.Symbols); jsonErr != nil {
			return snap, fmt.Errorf("relstore: unmarshal snapshot symbols: %w", jsonErr)
		}
		return snap, nil
	default:
		return snap, fmt.Errorf("%w: query intent snapshot: %v", aethererr.ErrStoreTransactional, err)
	}
}

// LatestIntentSnapshot returns the most recent snapshot for a given scope
// and target, or aethererr.ErrNoBaseline if none has been captured yet.
func (s *Store) LatestIntentSnapshot(scope, target string) (IntentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap IntentSnapshot
	var symbolsJSON string
	row := s.db.QueryRow(`SELECT snapshot_id, label, scope, target, symbols_json, created_at
		FROM intent_snapshots WHERE scope = ? AND target = ? ORDER BY created_at DESC LIMIT 1`, scope, target)
	err := row.Scan(&snap.SnapshotID, &snap.Label, &snap.Scope, &snap.Target, &symbolsJSON, &snap.CreatedAt)
	switch err {
	case sql.ErrNoRows:
		return IntentSnapshot{}, aethererr.ErrNoBaseline
	case nil:
		if jsonErr := json.Unmarshal([]byte(symbolsJSON), &snap.Symbols); jsonErr != nil {
			return snap, fmt.Errorf("relstore: unmarshal snapshot symbols: %w", jsonErr)
		}
		return snap, nil
	default:
		return snap, fmt.Errorf("%w: query intent snapshot: %v", aethererr.ErrStoreTransactional, err)
	}
}
