// interface.go - Evaluator interface for scoring study plan/report pairs

package ai

import (
	"context"
	"time"

	"github.com/studyhub/study_eval_gemini/internal/common"
)

// EvaluationInput is the assembled content for one plan/report pair.
type EvaluationInput struct {
	// Text is the labelled plan/report body.
	Text string
	// Evidence is a short note on photos detected and attached; optional.
	Evidence string
	// Images are JPEG-encoded photos, already capped by the prompt assembler.
	Images [][]byte
}

// Generation is the raw model answer with its token usage.
type Generation struct {
	Text      string
	Model     string
	Usage     common.TokenUsage
	Truncated bool // output hit the token limit
	Duration  time.Duration
}

// Evaluator defines the interface that all scoring providers must implement.
type Evaluator interface {
	// Evaluate makes a single blocking generation call. It never retries and
	// returns the upstream error wrapped with %w.
	Evaluate(ctx context.Context, system *SystemPrompt, input EvaluationInput) (*Generation, error)

	// GetProviderName returns the name of the provider (e.g., "gemini")
	GetProviderName() string

	Close() error
}

// ProviderConfig contains configuration for evaluation providers
type ProviderConfig struct {
	// Provider name; only "gemini" is supported
	Provider string

	APIKey  string
	Model   string
	Timeout time.Duration
	Pricing common.Pricing
}
