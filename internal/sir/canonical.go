package sir

import (
	"bytes"
	"encoding/json"
)

// Canonicalize renders sir as canonical JSON: object keys sorted
// lexicographically at every nesting level, no insignificant whitespace,
// and numbers in Go's shortest round-trip form. Two SIRs with identical
// field values always canonicalize to byte-identical output regardless of
// original field declaration order.
//
// No off-the-shelf canonical-JSON library is attested anywhere in the
// example pack, so this is a deliberate standard-library implementation:
// encoding/json already sorts map[string]any keys and emits floats in
// shortest round-trip form, so marshaling through a generic map gets
// canonical form for free, without hand-rolling a byte-level encoder.
func Canonicalize(s *SIR) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return CanonicalizeRaw(raw)
}

// CanonicalizeRaw re-encodes arbitrary JSON (e.g. a rollup result) into
// canonical form.
func CanonicalizeRaw(raw []byte) ([]byte, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; strip it so the
	// canonical form is hashed consistently regardless of caller.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
