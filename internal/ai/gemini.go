// gemini.go - Gemini evaluator: one generation call per plan/report pair

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/studyhub/study_eval_gemini/internal/common"
)

// maxOutputTokens prevents silent truncation of long evaluations.
const maxOutputTokens = 8192

// ErrEmptyResponse is returned when the model answers with no text part.
var ErrEmptyResponse = errors.New("empty response from Gemini API")

// GeminiEvaluator implements Evaluator using the Gemini API. The client is
// created once and shared; genai clients are safe for concurrent use.
type GeminiEvaluator struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	pricing   common.Pricing
}

// NewGeminiEvaluator creates a new Gemini evaluator
func NewGeminiEvaluator(ctx context.Context, cfg ProviderConfig) (*GeminiEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEvaluator{
		client:    client,
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
		pricing:   cfg.Pricing,
	}, nil
}

// GetProviderName returns the provider name
func (g *GeminiEvaluator) GetProviderName() string {
	return ProviderGemini
}

// Close releases the underlying client.
func (g *GeminiEvaluator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Evaluate sends the system instruction, the assembled text, the photo
// evidence note and the attached photos in a single GenerateContent call.
func (g *GeminiEvaluator) Evaluate(ctx context.Context, system *SystemPrompt, input EvaluationInput) (*Generation, error) {
	if !system.Loaded() {
		return nil, ErrPromptNotLoaded
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = genai.NewUserContent(
		genai.Text(system.Text()),
		genai.Text(GetOutputFormatRules()),
	)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: ptr(int32(maxOutputTokens)),
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, buildParts(input)...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	gen := &Generation{
		Text:      text,
		Model:     g.modelName,
		Truncated: finishedOnMaxTokens(resp),
		Duration:  time.Since(start),
	}
	if resp.UsageMetadata != nil {
		gen.Usage = g.pricing.Cost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
	}
	return gen, nil
}

func buildParts(input EvaluationInput) []genai.Part {
	parts := make([]genai.Part, 0, 2+len(input.Images))
	parts = append(parts, genai.Text(input.Text))
	if input.Evidence != "" {
		parts = append(parts, genai.Text(input.Evidence))
	}
	for _, img := range input.Images {
		parts = append(parts, genai.ImageData("jpeg", img))
	}
	return parts
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func finishedOnMaxTokens(resp *genai.GenerateContentResponse) bool {
	return len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens
}

func ptr(i int32) *int32 {
	return &i
}
