package symbol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// SymbolID is the 256-bit content-addressed identity of a Symbol, derived
// from (language, file_path, kind, qualified_name, signature_fingerprint).
// It is stable across pure reformatting or line shifts of the symbol's
// body; any change to an identity field yields a different ID.
type SymbolID [32]byte

// String renders the ID as lowercase hex, the form used in store keys and
// log lines.
func (id SymbolID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the unset value.
func (id SymbolID) IsZero() bool {
	return id == SymbolID{}
}

// ParseSymbolID decodes a hex string produced by SymbolID.String back into
// a SymbolID, as used when reading a symbol_id column back from storage.
func ParseSymbolID(hexStr string) (SymbolID, error) {
	var id SymbolID
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return id, err
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("symbol: invalid SymbolID length %d", len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}

// ComputeSymbolID hashes the identity tuple into a SymbolID. Each field is
// length-prefixed (a 4-byte big-endian length followed by its bytes) before
// concatenation, so no field can grow into the next and two distinct tuples
// can never collide by boundary-shifting — e.g. ("ab", "c") and ("a", "bc")
// hash to different digests even though naive concatenation would conflate
// them.
func ComputeSymbolID(language, filePath string, kind Kind, qualifiedName, signatureFingerprint string) SymbolID {
	h := blake3.New(32, nil)
	writeLengthPrefixed(h, []byte(language))
	writeLengthPrefixed(h, []byte(filePath))
	writeLengthPrefixed(h, []byte(kind))
	writeLengthPrefixed(h, []byte(qualifiedName))
	writeLengthPrefixed(h, []byte(signatureFingerprint))

	var out SymbolID
	copy(out[:], h.Sum(nil))
	return out
}

func writeLengthPrefixed(h *blake3.Hasher, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// WithID returns a copy of s with its ID field populated from its identity
// fields, computing the ID if it is not already set to match.
func (s Symbol) WithID() Symbol {
	s.ID = ComputeSymbolID(s.Language, s.FilePath, s.Kind, s.QualifiedName, s.SignatureFingerprint)
	return s
}
