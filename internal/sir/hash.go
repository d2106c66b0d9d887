package sir

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Hash computes sir_hash = BLAKE3(canonicalize(sir)). The hash fully
// determines SIR equality: regeneration producing identical canonical JSON
// yields the same hash and MUST NOT create a new history row (see
// internal/relstore's put_sir).
func Hash(s *SIR) (string, error) {
	canonical, err := Canonicalize(s)
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

// HashBytes hashes already-canonicalized JSON bytes.
func HashBytes(canonical []byte) string {
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
