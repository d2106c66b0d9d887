package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aether/internal/aethererr"
)

// LocalRuntimeEmbeddingGenerator calls a local embedding server (e.g.
// Ollama) over HTTP. Model weight loading is the server's responsibility;
// this client tracks the observed embedding width from the most recent
// response.
type LocalRuntimeEmbeddingGenerator struct {
	endpoint   string
	model      string
	httpClient *http.Client

	dimensions int
}

// NewLocalRuntimeEmbeddingGenerator returns a LocalRuntimeEmbeddingGenerator
// posting to endpoint (default "http://localhost:11434/api/embeddings").
func NewLocalRuntimeEmbeddingGenerator(endpoint, model string) *LocalRuntimeEmbeddingGenerator {
	if endpoint == "" {
		endpoint = "http://localhost:11434/api/embeddings"
	}
	return &LocalRuntimeEmbeddingGenerator{
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (l *LocalRuntimeEmbeddingGenerator) Provider() string { return "local_runtime" }
func (l *LocalRuntimeEmbeddingGenerator) Model() string    { return l.model }

// Dimensions returns the last observed embedding width; 0 until the first
// successful Embed call.
func (l *LocalRuntimeEmbeddingGenerator) Dimensions() int { return l.dimensions }

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (l *LocalRuntimeEmbeddingGenerator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
		l.dimensions = len(vec)
	}
	return out, nil
}

func (l *LocalRuntimeEmbeddingGenerator) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Model: l.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("inference: marshal local embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inference: build local embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: local embedding runtime unreachable: %v", aethererr.ErrInferenceTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading local embed response: %v", aethererr.ErrInferenceTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: local embedding runtime status %d: %s", aethererr.ErrInferenceFatal, resp.StatusCode, respBody)
	}

	var parsed localEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parsing local embed response: %v", aethererr.ErrInferenceFatal, err)
	}
	return parsed.Embedding, nil
}
