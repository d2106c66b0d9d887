package orchestrator

import (
	"context"
	"strings"

	"aether/internal/inference"
	"aether/internal/sir"
)

// genSummarizer adapts a RetryingSirGenerator into internal/sir.Summarizer,
// so rollups above the concatenation threshold get a prose intent instead
// of an ever-growing sentence. It reuses the same generator (and therefore
// the same retry/rate-limit policy) that produces leaf SIRs, rather than
// standing up a second inference path for summarization alone.
type genSummarizer struct {
	gen *inference.RetryingSirGenerator
}

func (o *Orchestrator) summarizer() *genSummarizer {
	if o.sirGen == nil {
		return nil
	}
	return &genSummarizer{gen: o.sirGen}
}

// Summarizer exposes the orchestrator's rollup summarizer for callers
// outside the package (the CLI's get_sir lookup) that need to aggregate a
// file or module SIR the same way indexing does.
func (o *Orchestrator) Summarizer() sir.Summarizer {
	s := o.summarizer()
	if s == nil {
		return nil
	}
	return s
}

func (g *genSummarizer) Summarize(intents []string) (string, error) {
	if g == nil || g.gen == nil {
		return strings.Join(intents, " "), nil
	}
	record, err := g.gen.GenerateValidated(context.Background(), strings.Join(intents, "\n"), "")
	if err != nil {
		return "", err
	}
	return record.Intent, nil
}
