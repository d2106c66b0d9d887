package sir

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// FileID returns the content-addressed identity of a file-level rollup:
// BLAKE3("file:" + language + ":" + normalizedPath).
func FileID(language, normalizedPath string) string {
	return hashParts("file:", language, ":", normalizedPath)
}

// ModuleID returns the content-addressed identity of a module-level
// rollup: BLAKE3("module:" + language + ":" + normalizedDir).
func ModuleID(language, normalizedDir string) string {
	return hashParts("module:", language, ":", normalizedDir)
}

func hashParts(parts ...string) string {
	h := blake3.New(32, nil)
	for _, p := range parts {
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
