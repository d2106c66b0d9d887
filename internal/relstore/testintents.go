package relstore

import (
	"encoding/hex"
	"fmt"

	"aether/internal/aethererr"
	"aether/internal/parser"
	"aether/internal/symbol"
)

// TestIntentMatch is one ranked hit from SearchTestIntents.
type TestIntentMatch struct {
	FilePath   string
	TestName   string
	IntentText string
	Language   string
	SymbolID   *symbol.SymbolID
}

// ReplaceTestIntentsForFile deletes every test intent previously recorded
// for file and inserts intents in its place.
func (s *Store) ReplaceTestIntentsForFile(file string, intents []parser.TestIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin replace-test-intents tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM test_intents WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("%w: delete test intents for %s: %v", aethererr.ErrStoreTransactional, file, err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO test_intents (intent_id, file_path, test_name, intent_text, group_label, language, symbol_id) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare test intent insert: %v", aethererr.ErrStoreTransactional, err)
	}
	defer stmt.Close()

	for _, ti := range intents {
		id := ti.ID()
		var symID interface{}
		if ti.SymbolID != nil {
			symID = ti.SymbolID.String()
		}
		var groupLabel interface{}
		if ti.GroupLabel != "" {
			groupLabel = ti.GroupLabel
		}
		if _, err := stmt.Exec(hex.EncodeToString(id[:]), ti.FilePath, ti.TestName, ti.IntentText, groupLabel, ti.Language, symID); err != nil {
			return fmt.Errorf("%w: insert test intent: %v", aethererr.ErrStoreTransactional, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit replace-test-intents tx: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

// TestIntentCountForSymbol returns how many test intents reference
// symbolID, the graph-health test-coverage factor's raw signal.
func (s *Store) TestIntentCountForSymbol(symbolID symbol.SymbolID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM test_intents WHERE symbol_id = ?`, symbolID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count test intents for %s: %v", aethererr.ErrStoreTransactional, symbolID, err)
	}
	return count, nil
}

// SearchTestIntents performs a simple substring search over intent_text,
// for the unified ask query's text search over test intents.
func (s *Store) SearchTestIntents(query string, limit int) ([]TestIntentMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT file_path, test_name, intent_text, language, symbol_id FROM test_intents
		WHERE intent_text LIKE ? ESCAPE '\' ORDER BY file_path, test_name LIMIT ?`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search test intents: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []TestIntentMatch
	for rows.Next() {
		var file, testName, intentText, language string
		var symID interface{}
		if err := rows.Scan(&file, &testName, &intentText, &language, &symID); err != nil {
			return nil, fmt.Errorf("%w: scan test intent row: %v", aethererr.ErrStoreTransactional, err)
		}
		match := TestIntentMatch{FilePath: file, TestName: testName, IntentText: intentText, Language: language}
		if symID != nil {
			id, err := symbolIDFromHex(symID.(string))
			if err != nil {
				return nil, err
			}
			match.SymbolID = &id
		}
		out = append(out, match)
	}
	return out, nil
}
