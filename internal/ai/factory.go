// Package ai builds the analysis providers and holds the prompt and
// output schema they share.
package ai

import (
	"fmt"

	"callpipe/internal/ai/mock"
	"callpipe/internal/ai/openai"
	"callpipe/internal/config"
	"callpipe/pkg/models"
)

// NewProvider constructs the AI provider named by config.
// Called once at worker startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("%w %q: must be one of openai, mock", ErrUnknownProvider, cfg.Provider)
	}
}
