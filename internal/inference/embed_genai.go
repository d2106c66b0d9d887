package inference

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const genaiMaxBatchSize = 100

func genaiInt32Ptr(i int32) *int32 { return &i }

// GenAIEmbeddingGenerator generates embeddings via Google's Gemini API,
// chunking batches above the API's per-request limit, mirroring the
// teacher's GenAIEngine.EmbedBatch.
type GenAIEmbeddingGenerator struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGenAIEmbeddingGenerator constructs a GenAIEmbeddingGenerator.
func NewGenAIEmbeddingGenerator(ctx context.Context, apiKey, model string, dimensions int) (*GenAIEmbeddingGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("inference: genai api key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if dimensions <= 0 {
		dimensions = 3072
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("inference: genai client: %w", err)
	}
	return &GenAIEmbeddingGenerator{client: client, model: model, dimensions: dimensions}, nil
}

func (g *GenAIEmbeddingGenerator) Provider() string { return "cloud_api" }
func (g *GenAIEmbeddingGenerator) Model() string    { return g.model }
func (g *GenAIEmbeddingGenerator) Dimensions() int  { return g.dimensions }

func (g *GenAIEmbeddingGenerator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= genaiMaxBatchSize {
		return g.embedChunk(ctx, texts)
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += genaiMaxBatchSize {
		end := start + genaiMaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := g.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, chunk...)
	}
	return all, nil
}

func (g *GenAIEmbeddingGenerator) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genaiInt32Ptr(int32(g.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("inference: genai embed: %w", err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
