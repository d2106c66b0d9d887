// Package inference adapts local or remote models to AETHER's two
// capability sets — SirGenerator and EmbeddingGenerator — each polymorphic
// over Mock, CloudAPI, and LocalRuntime variants, selected by
// internal/config's inference/embeddings sections.
package inference

import "context"

// GenerateRequest carries a symbol's text and optional surrounding context
// to a SirGenerator. FeedbackPrevious and FeedbackError are set only on a
// retry following a schema validation failure.
type GenerateRequest struct {
	SymbolText        string
	SurroundingContext string
	FeedbackPrevious  string
	FeedbackError     string
}

// SirGenerator produces raw JSON that SHOULD validate as a SIR (internal/sir
// performs the actual validation; this package only requests and retries
// generation).
type SirGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}

// EmbeddingGenerator produces fixed-dimension vectors for a batch of
// strings. Dimensions is provider-and-model-specific; callers partition
// vector storage by (Provider, Model, Dimensions) per internal/vectorstore.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Provider() string
	Model() string
}
