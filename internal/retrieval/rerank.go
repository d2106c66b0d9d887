package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"aether/internal/aethererr"
)

// Reranker resorts a set of fused candidates against query, returning a
// new score per candidate ID. A reranker failure must degrade cleanly to
// the pre-rerank fused ordering; callers never treat a reranker error as
// fatal to the search itself.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]float64, error)
}

// RerankCandidate is one (query, candidate) pair submitted to a
// cross-encoder reranker.
type RerankCandidate struct {
	ID   string
	Text string
}

// rerank takes the top window fused results, builds candidate text from
// each symbol's SIR intent (falling back to "qualified_name kind
// file_path" when no SIR is available), submits them to the configured
// reranker, resorts by the returned scores, and recombines with the
// untouched tail beyond window.
func (e *Engine) rerank(ctx context.Context, query string, results []Result, window int) ([]Result, error) {
	if window <= 0 || window > len(results) {
		window = len(results)
	}
	head := results[:window]
	tail := results[window:]

	candidates := make([]RerankCandidate, len(head))
	for i, r := range head {
		text := r.Snippet
		if text == "" {
			text = fmt.Sprintf("%s %s %s", r.Title, r.Kind, r.FilePath)
		}
		candidates[i] = RerankCandidate{ID: r.ID, Text: text}
	}

	scores, err := e.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(head) {
		return nil, fmt.Errorf("retrieval: reranker returned %d scores for %d candidates", len(scores), len(head))
	}

	for i := range head {
		head[i].Score = scores[i]
	}
	sort.Slice(head, func(i, j int) bool { return head[i].Score > head[j].Score })

	return append(head, tail...), nil
}

// CrossEncoderReranker calls an HTTP cross-encoder reranking service,
// retrying transient failures with exponential backoff.
type CrossEncoderReranker struct {
	endpoint   string
	httpClient *http.Client
	maxElapsed time.Duration
}

// NewCrossEncoderReranker returns a CrossEncoderReranker posting to
// endpoint.
func NewCrossEncoderReranker(endpoint string, maxElapsed time.Duration) *CrossEncoderReranker {
	return &CrossEncoderReranker{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxElapsed: maxElapsed,
	}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

func (c *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]float64, error) {
	texts := make([]string, len(candidates))
	for i, cand := range candidates {
		texts[i] = cand.Text
	}
	body, err := json.Marshal(rerankRequest{Query: query, Candidates: texts})
	if err != nil {
		return nil, fmt.Errorf("retrieval: marshal rerank request: %w", err)
	}

	var parsed rerankResponse
	policy := backoff.WithContext(boundedRerankBackoff(c.maxElapsed), ctx)
	err = backoff.Retry(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("retrieval: build rerank request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("%w: reranker unreachable: %v", aethererr.ErrInferenceTransient, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading rerank response: %v", aethererr.ErrInferenceTransient, err)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%w: reranker status %d: %s", aethererr.ErrInferenceFatal, resp.StatusCode, respBody))
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: parsing rerank response: %v", aethererr.ErrInferenceFatal, err))
		}
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	if len(parsed.Scores) != len(candidates) {
		return nil, errors.New("retrieval: reranker returned mismatched score count")
	}
	return parsed.Scores, nil
}

func boundedRerankBackoff(maxElapsed time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if maxElapsed <= 0 {
		maxElapsed = 15 * time.Second
	}
	eb.MaxElapsedTime = maxElapsed
	return eb
}
