// Package openai implements the AI provider over the OpenAI
// Responses API with structured output.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"callpipe/internal/config"
	"callpipe/pkg/models"
)

const defaultBaseURL = "https://api.openai.com"

var ErrEmptyResponse = errors.New("openai returned an empty response")

// Provider implements models.AIProvider using OpenAI structured output.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

type responsesRequest struct {
	Model string      `json:"model"`
	Input []inputItem `json:"input"`
	Text  textFormat  `json:"text"`
}

type inputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textFormat struct {
	Format formatSpec `json:"format"`
}

type formatSpec struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResult, error) {
	body, err := json.Marshal(responsesRequest{
		Model: p.cfg.Model,
		Input: []inputItem{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Text: textFormat{Format: formatSpec{
			Type:   "json_schema",
			Name:   req.SchemaName,
			Strict: true,
			Schema: req.Schema,
		}},
	})
	if err != nil {
		return models.GenerateResult{}, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	var text string
	operation := func() error {
		var opErr error
		text, opErr = p.call(ctx, body)
		return opErr
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return models.GenerateResult{}, err
	}
	if text == "" {
		return models.GenerateResult{}, ErrEmptyResponse
	}

	result := models.GenerateResult{Text: text}
	var js json.RawMessage
	if json.Unmarshal([]byte(text), &js) == nil {
		result.JSON = js
	}
	return result, nil
}

func (p *Provider) call(ctx context.Context, body []byte) (string, error) {
	base := p.cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create openai request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read openai response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("openai returned status %d: %s", resp.StatusCode, respBody)
		// Client errors will not improve on retry. 429 is the exception.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var parsed responsesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode openai response: %w", err))
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("openai error: %s", parsed.Error.Message))
	}

	if parsed.OutputText != "" {
		return parsed.OutputText, nil
	}
	for _, out := range parsed.Output {
		if out.Type != "message" {
			continue
		}
		for _, c := range out.Content {
			if c.Type == "output_text" && c.Text != "" {
				return c.Text, nil
			}
		}
	}
	return "", nil
}

var _ models.AIProvider = (*Provider)(nil)
