package relstore

import "aether/internal/logging"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS symbols (
	symbol_id TEXT PRIMARY KEY,
	language TEXT NOT NULL,
	file_path TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	signature_hash TEXT NOT NULL,
	parent_id TEXT,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_qualified_name ON symbols(qualified_name);

CREATE TABLE IF NOT EXISTS sir (
	symbol_id TEXT PRIMARY KEY REFERENCES symbols(symbol_id) ON DELETE CASCADE,
	sir_json TEXT NOT NULL,
	sir_hash TEXT NOT NULL,
	sir_status TEXT NOT NULL DEFAULT 'ok',
	last_error TEXT,
	last_attempt_at DATETIME,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sir_history (
	symbol_id TEXT NOT NULL,
	sir_hash TEXT NOT NULL,
	canonical_json TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	commit_hash TEXT
);
CREATE INDEX IF NOT EXISTS idx_sir_history_symbol ON sir_history(symbol_id, created_at);

CREATE TABLE IF NOT EXISTS symbol_edges (
	source_id TEXT NOT NULL,
	target_qualified_name TEXT NOT NULL,
	edge_kind TEXT NOT NULL,
	file_path TEXT NOT NULL,
	PRIMARY KEY (source_id, target_qualified_name, edge_kind)
);

CREATE TABLE IF NOT EXISTS test_intents (
	intent_id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	test_name TEXT NOT NULL,
	intent_text TEXT NOT NULL,
	group_label TEXT,
	language TEXT NOT NULL,
	symbol_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_test_intents_file ON test_intents(file_path);

CREATE TABLE IF NOT EXISTS project_notes (
	note_id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	source_type TEXT NOT NULL,
	tags_json TEXT NOT NULL DEFAULT '[]',
	file_refs_json TEXT NOT NULL DEFAULT '[]',
	symbol_refs_json TEXT NOT NULL DEFAULT '[]',
	entity_refs_json TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at DATETIME,
	is_archived INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_project_notes_content_hash ON project_notes(content_hash) WHERE is_archived = 0;

CREATE TABLE IF NOT EXISTS coupling_mining_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_commit TEXT,
	last_mined_at DATETIME,
	commits_scanned INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS drift_analysis_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_analysis_commit TEXT,
	last_analysis_at DATETIME,
	symbols_analyzed INTEGER NOT NULL DEFAULT 0,
	drift_detected INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS drift_results (
	result_id TEXT PRIMARY KEY,
	symbol_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	drift_type TEXT NOT NULL,
	drift_magnitude REAL,
	baseline_sir_hash TEXT NOT NULL,
	current_sir_hash TEXT NOT NULL,
	commit_range_start TEXT,
	commit_range_end TEXT,
	detail_json TEXT NOT NULL DEFAULT '{}',
	detected_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_acknowledged INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_drift_results_symbol ON drift_results(symbol_id);

CREATE TABLE IF NOT EXISTS intent_snapshots (
	snapshot_id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	scope TEXT NOT NULL,
	target TEXT NOT NULL,
	symbols_json TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS coupling_pairs (
	file_a TEXT NOT NULL,
	file_b TEXT NOT NULL,
	co_change_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (file_a, file_b)
);

CREATE TABLE IF NOT EXISTS file_commit_counts (
	file_path TEXT PRIMARY KEY,
	commit_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS community_membership (
	symbol_id TEXT PRIMARY KEY,
	community_label TEXT NOT NULL
);
`

// migrate applies the lazy, idempotent CREATE TABLE IF NOT EXISTS schema,
// matching the teacher's versionless migration style for a single-tenant
// embedded database (no down-migrations, no version table beyond what
// sqlite itself tracks via `PRAGMA user_version` if ever needed).
func (s *Store) migrate() error {
	logging.RelStore("applying schema migrations")
	_, err := s.db.Exec(schemaDDL)
	return err
}
