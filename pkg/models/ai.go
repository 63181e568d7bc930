package models

import (
	"context"
	"encoding/json"
)

// GenerateRequest asks an AI provider for a schema-constrained completion.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       map[string]any
}

// GenerateResult is the provider output. JSON is nil when Text is not
// valid JSON; callers decide how to handle that.
type GenerateResult struct {
	Text string
	JSON json.RawMessage
}

// AIProvider generates structured call analyses. Implementations must
// be safe for concurrent use.
type AIProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	Name() string
}
