package relstore

import (
	"fmt"

	"aether/internal/symbol"
)

func symbolIDFromHex(hexID string) (symbol.SymbolID, error) {
	id, err := symbol.ParseSymbolID(hexID)
	if err != nil {
		return id, fmt.Errorf("relstore: parse stored symbol_id %q: %w", hexID, err)
	}
	return id, nil
}
