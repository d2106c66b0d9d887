package relstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"aether/internal/aethererr"
)

// EntityRefRecord is a generic {kind, id} reference attached to a project
// note (e.g. {"commit", "a1b2c3"}).
type EntityRefRecord struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// NoteRecord is a project note row.
type NoteRecord struct {
	NoteID         string
	Content        string
	ContentHash    string
	SourceType     string
	Tags           []string
	FileRefs       []string
	SymbolRefs     []string
	EntityRefs     []EntityRefRecord
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AccessCount    int
	LastAccessedAt *time.Time
	IsArchived     bool
}

// UpsertNote inserts note, unless a non-archived row with the same
// ContentHash already exists — in which case that row's tags are merged
// (set union) with note.Tags and its access counters bumped in place, and
// its existing note_id is returned instead of note.NoteID.
func (s *Store) UpsertNote(note NoteRecord) (finalID string, merged bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("%w: begin upsert-note tx: %v", aethererr.ErrStoreTransactional, err)
	}
	defer tx.Rollback()

	var existingID, existingTagsJSON string
	var existingAccessCount int
	row := tx.QueryRow(`SELECT note_id, tags_json, access_count FROM project_notes WHERE content_hash = ? AND is_archived = 0`, note.ContentHash)
	err = row.Scan(&existingID, &existingTagsJSON, &existingAccessCount)
	switch err {
	case sql.ErrNoRows:
		if insertErr := insertNote(tx, note); insertErr != nil {
			return "", false, insertErr
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return "", false, fmt.Errorf("%w: commit upsert-note tx: %v", aethererr.ErrStoreTransactional, commitErr)
		}
		return note.NoteID, false, nil
	case nil:
		var existingTags []string
		if jsonErr := json.Unmarshal([]byte(existingTagsJSON), &existingTags); jsonErr != nil {
			return "", false, fmt.Errorf("relstore: unmarshal existing tags: %w", jsonErr)
		}
		mergedTags := unionTags(existingTags, note.Tags)
		tagsJSON, marshalErr := json.Marshal(mergedTags)
		if marshalErr != nil {
			return "", false, fmt.Errorf("relstore: marshal merged tags: %w", marshalErr)
		}
		_, execErr := tx.Exec(`UPDATE project_notes SET tags_json = ?, access_count = access_count + 1, last_accessed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE note_id = ?`,
			string(tagsJSON), existingID)
		if execErr != nil {
			return "", false, fmt.Errorf("%w: merge note: %v", aethererr.ErrStoreTransactional, execErr)
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return "", false, fmt.Errorf("%w: commit upsert-note tx: %v", aethererr.ErrStoreTransactional, commitErr)
		}
		return existingID, true, nil
	default:
		return "", false, fmt.Errorf("%w: query existing note: %v", aethererr.ErrStoreTransactional, err)
	}
}

func insertNote(tx *sql.Tx, note NoteRecord) error {
	tagsJSON, _ := json.Marshal(note.Tags)
	fileRefsJSON, _ := json.Marshal(note.FileRefs)
	symbolRefsJSON, _ := json.Marshal(note.SymbolRefs)
	entityRefsJSON, _ := json.Marshal(note.EntityRefs)

	_, err := tx.Exec(`INSERT INTO project_notes
		(note_id, content, content_hash, source_type, tags_json, file_refs_json, symbol_refs_json, entity_refs_json, created_at, updated_at, access_count, is_archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 0, 0)`,
		note.NoteID, note.Content, note.ContentHash, note.SourceType,
		string(tagsJSON), string(fileRefsJSON), string(symbolRefsJSON), string(entityRefsJSON))
	if err != nil {
		return fmt.Errorf("%w: insert note: %v", aethererr.ErrStoreTransactional, err)
	}
	return nil
}

func unionTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	var out []string
	for _, t := range append(append([]string{}, existing...), incoming...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// GetNote reads one non-archived note by ID, or (nil, nil) if it doesn't
// exist (or is archived) — used by the retrieval engine to distinguish a
// note-vector hit from a symbol-vector hit sharing the same embedding
// partition, and to read its access/recency fields for boosting.
func (s *Store) GetNote(noteID string) (*NoteRecord, error) {
	return s.getNote(noteID, false)
}

// GetNoteAny reads one note by ID regardless of archived status, or
// (nil, nil) if it doesn't exist — used by Memory.Recall when
// include_archived is requested.
func (s *Store) GetNoteAny(noteID string) (*NoteRecord, error) {
	return s.getNote(noteID, true)
}

func (s *Store) getNote(noteID string, includeArchived bool) (*NoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT note_id, content, content_hash, source_type, tags_json, file_refs_json, symbol_refs_json, entity_refs_json, created_at, updated_at, access_count, last_accessed_at, is_archived
		FROM project_notes WHERE note_id = ?`
	if !includeArchived {
		query += ` AND is_archived = 0`
	}
	row := s.db.QueryRow(query, noteID)

	var n NoteRecord
	var tagsJSON, fileRefsJSON, symbolRefsJSON, entityRefsJSON string
	var lastAccessedAt sql.NullTime
	var archived int
	if err := row.Scan(&n.NoteID, &n.Content, &n.ContentHash, &n.SourceType, &tagsJSON, &fileRefsJSON, &symbolRefsJSON, &entityRefsJSON,
		&n.CreatedAt, &n.UpdatedAt, &n.AccessCount, &lastAccessedAt, &archived); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get note %s: %v", aethererr.ErrStoreTransactional, noteID, err)
	}
	json.Unmarshal([]byte(tagsJSON), &n.Tags)
	json.Unmarshal([]byte(fileRefsJSON), &n.FileRefs)
	json.Unmarshal([]byte(symbolRefsJSON), &n.SymbolRefs)
	json.Unmarshal([]byte(entityRefsJSON), &n.EntityRefs)
	if lastAccessedAt.Valid {
		n.LastAccessedAt = &lastAccessedAt.Time
	}
	n.IsArchived = archived != 0
	return &n, nil
}

// BumpNoteAccess increments a note's access_count and sets
// last_accessed_at, mirroring Store.BumpAccess for symbols.
func (s *Store) BumpNoteAccess(noteID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE project_notes SET access_count = access_count + 1, last_accessed_at = ? WHERE note_id = ?`, at.UTC(), noteID)
	if err != nil {
		return fmt.Errorf("%w: bump note access for %s: %v", aethererr.ErrStoreTransactional, noteID, err)
	}
	return nil
}

// RecallNotes returns non-archived notes whose content matches a simple
// substring query, most recently updated first.
func (s *Store) RecallNotes(query string, limit int) ([]NoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT note_id, content, content_hash, source_type, tags_json, file_refs_json, symbol_refs_json, entity_refs_json, created_at, updated_at, access_count, last_accessed_at, is_archived
		FROM project_notes WHERE is_archived = 0 AND content LIKE ? ORDER BY updated_at DESC LIMIT ?`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recall notes: %v", aethererr.ErrStoreTransactional, err)
	}
	defer rows.Close()

	var out []NoteRecord
	for rows.Next() {
		var n NoteRecord
		var tagsJSON, fileRefsJSON, symbolRefsJSON, entityRefsJSON string
		var lastAccessedAt sql.NullTime
		var archived int
		if err := rows.Scan(&n.NoteID, &n.Content, &n.ContentHash, &n.SourceType, &tagsJSON, &fileRefsJSON, &symbolRefsJSON, &entityRefsJSON,
			&n.CreatedAt, &n.UpdatedAt, &n.AccessCount, &lastAccessedAt, &archived); err != nil {
			return nil, fmt.Errorf("%w: scan note row: %v", aethererr.ErrStoreTransactional, err)
		}
		json.Unmarshal([]byte(tagsJSON), &n.Tags)
		json.Unmarshal([]byte(fileRefsJSON), &n.FileRefs)
		json.Unmarshal([]byte(symbolRefsJSON), &n.SymbolRefs)
		json.Unmarshal([]byte(entityRefsJSON), &n.EntityRefs)
		if lastAccessedAt.Valid {
			n.LastAccessedAt = &lastAccessedAt.Time
		}
		n.IsArchived = archived != 0
		out = append(out, n)
	}
	return out, nil
}
