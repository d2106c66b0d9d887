package inference

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"aether/internal/aethererr"
	"aether/internal/logging"
	"aether/internal/sir"
)

// maxFeedbackRetryBytes bounds how much of a previous invalid output is
// replayed into a feedback retry prompt, per the decision to keep only the
// tail — the part closest to where generation likely went wrong — rather
// than the whole (potentially very long) invalid response.
const maxFeedbackRetryBytes = 2000

// RetryingSirGenerator wraps a SirGenerator with the spec's retry policy:
// up to maxAttempts attempts; on schema validation failure, the next prompt
// includes the previous invalid output (truncated to its last
// maxFeedbackRetryBytes) and the validator error; if the feedback retry
// also fails validation, the next attempt falls back to from-scratch
// generation. Rate limiting uses a token bucket; backoff is exponential
// with jitter, bounded by maxElapsed.
type RetryingSirGenerator struct {
	inner       SirGenerator
	maxAttempts int
	limiter     *rate.Limiter
	maxElapsed  time.Duration
}

// NewRetryingSirGenerator wraps inner with retry and rate-limiting policy.
// ratePerSecond <= 0 disables rate limiting.
func NewRetryingSirGenerator(inner SirGenerator, maxAttempts int, ratePerSecond float64, maxElapsed time.Duration) *RetryingSirGenerator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &RetryingSirGenerator{inner: inner, maxAttempts: maxAttempts, limiter: limiter, maxElapsed: maxElapsed}
}

func (r *RetryingSirGenerator) Name() string { return r.inner.Name() }

// GenerateValidated runs the generate/validate/retry loop end to end,
// returning a validated *sir.SIR or an error classified per aethererr.
func (r *RetryingSirGenerator) GenerateValidated(ctx context.Context, symbolText, surroundingContext string) (*sir.SIR, error) {
	req := GenerateRequest{SymbolText: symbolText, SurroundingContext: surroundingContext}
	attemptedFeedback := false

	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		raw, err := r.generateWithBackoff(ctx, req)
		if err != nil {
			lastErr = err
			if errors.Is(err, aethererr.ErrInferenceFatal) {
				return nil, err
			}
			continue
		}

		validated, verr := sir.Validate([]byte(raw))
		if verr == nil {
			return validated, nil
		}

		lastErr = verr
		logging.InferenceDebug("sir generation attempt %d failed schema validation: %v", attempt, verr)

		if !attemptedFeedback {
			req = GenerateRequest{
				SymbolText:        symbolText,
				SurroundingContext: surroundingContext,
				FeedbackPrevious:  truncateTail(raw, maxFeedbackRetryBytes),
				FeedbackError:     verr.Error(),
			}
			attemptedFeedback = true
		} else {
			// Feedback retry also failed validation: fall back to
			// from-scratch generation for any remaining attempts.
			req = GenerateRequest{SymbolText: symbolText, SurroundingContext: surroundingContext}
		}
	}
	return nil, lastErr
}

func (r *RetryingSirGenerator) generateWithBackoff(ctx context.Context, req GenerateRequest) (string, error) {
	var result string
	policy := backoff.WithContext(boundedExponential(r.maxElapsed), ctx)
	err := backoff.Retry(func() error {
		out, err := r.inner.Generate(ctx, req)
		if err != nil {
			if errors.Is(err, aethererr.ErrInferenceFatal) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = out
		return nil
	}, policy)
	return result, err
}

func boundedExponential(maxElapsed time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	eb.MaxElapsedTime = maxElapsed
	return eb
}

func truncateTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
