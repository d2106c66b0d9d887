package inference

import (
	"context"
	"fmt"
)

// MockSirGenerator deterministically derives a plausible-looking SIR from a
// symbol's text, for offline development and tests. It never calls out to a
// network.
type MockSirGenerator struct{}

// NewMockSirGenerator returns a MockSirGenerator.
func NewMockSirGenerator() *MockSirGenerator { return &MockSirGenerator{} }

func (m *MockSirGenerator) Name() string { return "mock" }

func (m *MockSirGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.FeedbackError != "" {
		// Even on a feedback retry, the mock produces a valid SIR — there
		// is nothing to correct, since it never produces invalid output.
	}
	intent := fmt.Sprintf("Mock-inferred summary of a %d-byte symbol.", len(req.SymbolText))
	return fmt.Sprintf(`{
		"intent": %q,
		"inputs": [],
		"outputs": [],
		"side_effects": [],
		"dependencies": [],
		"error_modes": [],
		"edge_cases": [],
		"confidence": 0.5
	}`, intent), nil
}
