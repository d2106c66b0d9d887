package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSIR = `{"intent":"x","inputs":[],"outputs":[],"side_effects":[],"dependencies":[],"error_modes":[],"edge_cases":[],"confidence":0.8}`
const invalidSIR = `{"intent":"x"}`

type scriptedGenerator struct {
	responses []string
	calls     []GenerateRequest
	idx       int
}

func (s *scriptedGenerator) Name() string { return "scripted" }

func (s *scriptedGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	s.calls = append(s.calls, req)
	out := s.responses[s.idx]
	if s.idx < len(s.responses)-1 {
		s.idx++
	}
	return out, nil
}

func TestRetryingSirGenerator_SucceedsFirstTry(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validSIR}}
	r := NewRetryingSirGenerator(gen, 3, 0, 0)
	out, err := r.GenerateValidated(context.Background(), "func foo() {}", "")
	require.NoError(t, err)
	assert.Equal(t, "x", out.Intent)
	assert.Len(t, gen.calls, 1)
}

func TestRetryingSirGenerator_FeedbackRetryIncludesPreviousOutputAndError(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{invalidSIR, validSIR}}
	r := NewRetryingSirGenerator(gen, 3, 0, 0)
	out, err := r.GenerateValidated(context.Background(), "func foo() {}", "")
	require.NoError(t, err)
	assert.Equal(t, "x", out.Intent)
	require.Len(t, gen.calls, 2)
	assert.Empty(t, gen.calls[0].FeedbackPrevious)
	assert.Equal(t, invalidSIR, gen.calls[1].FeedbackPrevious)
	assert.NotEmpty(t, gen.calls[1].FeedbackError)
}

func TestRetryingSirGenerator_FallsBackFromScratchAfterFeedbackFails(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{invalidSIR, invalidSIR, validSIR}}
	r := NewRetryingSirGenerator(gen, 3, 0, 0)
	out, err := r.GenerateValidated(context.Background(), "func foo() {}", "")
	require.NoError(t, err)
	assert.Equal(t, "x", out.Intent)
	require.Len(t, gen.calls, 3)
	// Third attempt falls back to scratch: no feedback fields set.
	assert.Empty(t, gen.calls[2].FeedbackPrevious)
	assert.Empty(t, gen.calls[2].FeedbackError)
}

func TestRetryingSirGenerator_ExhaustsAttempts(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{invalidSIR, invalidSIR, invalidSIR}}
	r := NewRetryingSirGenerator(gen, 3, 0, 0)
	_, err := r.GenerateValidated(context.Background(), "func foo() {}", "")
	require.Error(t, err)
}

func TestQualityMonitor_WarnsBelowFloorAndResetsOnRecovery(t *testing.T) {
	qm := NewQualityMonitor(3, 0.5)
	qm.Observe(0.9)
	assert.InDelta(t, 0.9, qm.Mean(), 0.001)

	qm.Observe(0.1)
	qm.Observe(0.1)
	qm.Observe(0.1)
	assert.Less(t, qm.Mean(), 0.5)

	qm.Observe(0.9)
	qm.Observe(0.9)
	qm.Observe(0.9)
	assert.GreaterOrEqual(t, qm.Mean(), 0.5)
}
