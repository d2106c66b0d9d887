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

// LocalRuntimeSirGenerator calls a locally running model server (e.g.
// Ollama) over HTTP, mirroring the teacher's ZAIClient JSON-over-HTTP
// pattern but against a local, not cloud, endpoint.
type LocalRuntimeSirGenerator struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewLocalRuntimeSirGenerator returns a LocalRuntimeSirGenerator posting to
// endpoint (default "http://localhost:11434/api/generate").
func NewLocalRuntimeSirGenerator(endpoint, model string) *LocalRuntimeSirGenerator {
	if endpoint == "" {
		endpoint = "http://localhost:11434/api/generate"
	}
	return &LocalRuntimeSirGenerator{
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (l *LocalRuntimeSirGenerator) Name() string { return "local_runtime:" + l.model }

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
}

func (l *LocalRuntimeSirGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(localGenerateRequest{
		Model:  l.model,
		Prompt: buildSirPrompt(req),
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("inference: marshal local request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("inference: build local request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: local runtime unreachable: %v", aethererr.ErrInferenceTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading local response: %v", aethererr.ErrInferenceTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: local runtime busy", aethererr.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: local runtime status %d: %s", aethererr.ErrInferenceFatal, resp.StatusCode, respBody)
	}

	var parsed localGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing local response: %v", aethererr.ErrInferenceFatal, err)
	}
	return parsed.Response, nil
}
