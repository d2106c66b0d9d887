// Package symbol defines AETHER's Symbol record and its content-addressed
// identity: a stable ID derived purely from the fields that determine what
// the symbol *is*, independent of formatting, position, or access history.
package symbol

import "time"

// Kind classifies the syntactic role of a Symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindType      Kind = "type"
	KindInterface Kind = "interface"
	KindTrait     Kind = "trait"
	KindModuleVar Kind = "module_var"
)

// Symbol is a single definition extracted from source: a function, type,
// trait/interface, method, or module-level binding.
type Symbol struct {
	ID SymbolID `json:"symbol_id"`

	Language             string `json:"language"`
	FilePath             string `json:"file_path"` // workspace-relative, normalized
	QualifiedName        string `json:"qualified_name"`
	Kind                 Kind   `json:"kind"`
	SignatureFingerprint string `json:"signature_fingerprint"`

	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`

	ParentID *SymbolID `json:"parent_id,omitempty"`

	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// IdentityKey returns the tuple that determines Symbol.ID, for callers that
// need to recompute or compare identity without holding a full Symbol.
func (s Symbol) IdentityKey() (language, filePath string, kind Kind, qualifiedName, signatureFingerprint string) {
	return s.Language, s.FilePath, s.Kind, s.QualifiedName, s.SignatureFingerprint
}
