package inference

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"aether/internal/logging"
)

// GenAISirGenerator requests SIR JSON from Google's Gemini API in strict-JSON
// mode, mirroring the teacher's GenAIEngine client construction.
type GenAISirGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAISirGenerator constructs a GenAISirGenerator. apiKey must be
// non-empty; model defaults to "gemini-2.0-flash" if empty.
func NewGenAISirGenerator(ctx context.Context, apiKey, model string) (*GenAISirGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("inference: genai api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("inference: genai client: %w", err)
	}
	return &GenAISirGenerator{client: client, model: model}, nil
}

func (g *GenAISirGenerator) Name() string { return "cloud_api:genai:" + g.model }

func (g *GenAISirGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	prompt := buildSirPrompt(req)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	mime := "application/json"
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: mime,
	})
	if err != nil {
		logging.Inference("genai sir generation failed: %v", err)
		return "", fmt.Errorf("inference: genai generate: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("inference: genai returned no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func buildSirPrompt(req GenerateRequest) string {
	if req.FeedbackError == "" {
		return fmt.Sprintf(
			"Summarize the following code's intent as strict JSON matching the SIR schema "+
				"(intent, inputs, outputs, side_effects, dependencies, error_modes, edge_cases, confidence).\n\nContext:\n%s\n\nCode:\n%s",
			req.SurroundingContext, req.SymbolText)
	}
	return fmt.Sprintf(
		"Your previous output failed schema validation with error: %s\n\n"+
			"Previous output:\n%s\n\n"+
			"Produce corrected strict JSON matching the SIR schema for this code:\n%s",
		req.FeedbackError, req.FeedbackPrevious, req.SymbolText)
}
