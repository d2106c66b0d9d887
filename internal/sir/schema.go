package sir

import (
	"encoding/json"
	"fmt"

	"aether/internal/aethererr"
)

var requiredFields = []string{
	"intent", "inputs", "outputs", "side_effects",
	"dependencies", "error_modes", "edge_cases", "confidence",
}

// SchemaError describes why raw SIR JSON failed validation.
type SchemaError struct {
	Field   string
	Problem string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sir schema: field %q: %s", e.Field, e.Problem)
}

func (e *SchemaError) Unwrap() error {
	return aethererr.ErrSchemaValidation
}

// Validate parses raw JSON and checks it against the SIR schema: every
// required field present, string-array fields typed correctly, and
// confidence within [0, 1]. It returns a *SchemaError (wrapping
// aethererr.ErrSchemaValidation) on any violation.
func Validate(raw []byte) (*SIR, error) {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, &SchemaError{Field: "<root>", Problem: "not a JSON object: " + err.Error()}
	}

	for _, field := range requiredFields {
		if _, ok := asMap[field]; !ok {
			return nil, &SchemaError{Field: field, Problem: "missing required field"}
		}
	}

	var out SIR
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &SchemaError{Field: "<root>", Problem: "type mismatch: " + err.Error()}
	}

	for _, pair := range []struct {
		name string
		val  []string
	}{
		{"inputs", out.Inputs},
		{"outputs", out.Outputs},
		{"side_effects", out.SideEffects},
		{"dependencies", out.Dependencies},
		{"error_modes", out.ErrorModes},
		{"edge_cases", out.EdgeCases},
	} {
		if pair.val == nil {
			return nil, &SchemaError{Field: pair.name, Problem: "must be an array, even if empty"}
		}
	}

	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, &SchemaError{Field: "confidence", Problem: "must be within [0, 1]"}
	}

	return &out, nil
}
