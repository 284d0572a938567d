// factory.go - Evaluator factory for creating provider instances

package ai

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ProviderGemini is the default and only built-in provider.
const ProviderGemini = "gemini"

// NewEvaluator creates an evaluator based on configuration. An empty provider
// selects Gemini.
func NewEvaluator(ctx context.Context, cfg ProviderConfig, logger *logrus.Logger) (Evaluator, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderGemini
	}

	switch provider {
	case ProviderGemini:
		logger.WithField("model", cfg.Model).Info("Creating Gemini evaluator")
		return NewGeminiEvaluator(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported evaluation provider: %s (supported: %s)", provider, ProviderGemini)
	}
}
