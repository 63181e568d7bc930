// Package speech talks to the async speech recognition API and turns
// its word-level output into speaker segments.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrMissingAPIKey   = errors.New("speech api key is not configured")
	ErrMissingFolderID = errors.New("speech folder id is not configured")
	ErrRequestFailed   = errors.New("speech request failed")
)

// OperationStatus is the state of an async recognition operation.
type OperationStatus struct {
	Done         bool
	ErrorMessage string
}

// Client starts async recognitions and fetches their results.
type Client interface {
	// Start submits audioURI for recognition and returns the
	// operation id to poll.
	Start(ctx context.Context, audioURI string) (string, error)
	// Status reports whether the operation finished and any
	// provider-side error.
	Status(ctx context.Context, operationID string) (OperationStatus, error)
	// FetchResult retrieves the recognized chunks of a finished
	// operation.
	FetchResult(ctx context.Context, operationID string) ([]Chunk, error)
}

// Config carries the provider settings for HTTPClient.
type Config struct {
	APIKey            string
	FolderID          string
	Language          string
	Model             string
	ProfanityFilter   bool
	Diarization       bool
	RecognizeEndpoint string
	OperationEndpoint string
	Timeout           time.Duration
}

// HTTPClient implements Client over the provider's REST API.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) check() error {
	if c.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.cfg.FolderID == "" {
		return ErrMissingFolderID
	}
	return nil
}

type startRequest struct {
	URI              string           `json:"uri"`
	RecognitionModel recognitionModel `json:"recognitionModel"`
}

type recognitionModel struct {
	Model           string          `json:"model"`
	TextNorm        textNorm        `json:"textNormalization"`
	LanguageRestr   languageRestr   `json:"languageRestriction"`
	AudioProcessing string          `json:"audioProcessingType"`
	SpeakerLabeling speakerLabeling `json:"speakerLabeling,omitempty"`
}

type textNorm struct {
	TextNormalization string `json:"textNormalization"`
	ProfanityFilter   bool   `json:"profanityFilter"`
}

type languageRestr struct {
	RestrictionType string   `json:"restrictionType"`
	LanguageCode    []string `json:"languageCode"`
}

type speakerLabeling struct {
	SpeakerLabeling string `json:"speakerLabeling,omitempty"`
}

type startResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) Start(ctx context.Context, audioURI string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}

	reqBody := startRequest{
		URI: audioURI,
		RecognitionModel: recognitionModel{
			Model: c.cfg.Model,
			TextNorm: textNorm{
				TextNormalization: "TEXT_NORMALIZATION_ENABLED",
				ProfanityFilter:   c.cfg.ProfanityFilter,
			},
			LanguageRestr: languageRestr{
				RestrictionType: "WHITELIST",
				LanguageCode:    []string{c.cfg.Language},
			},
			AudioProcessing: "FULL_DATA",
		},
	}
	if c.cfg.Diarization {
		reqBody.RecognitionModel.SpeakerLabeling = speakerLabeling{SpeakerLabeling: "SPEAKER_LABELING_ENABLED"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal recognition request: %w", err)
	}

	endpoint := c.cfg.RecognizeEndpoint + "/stt/v3/recognizeFileAsync"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create recognition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start recognition: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError("recognizeFileAsync", resp)
	}

	var sr startResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if sr.ID == "" {
		return "", fmt.Errorf("%w: recognizeFileAsync returned no operation id", ErrRequestFailed)
	}
	return sr.ID, nil
}

type operationResponse struct {
	Done  bool `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) Status(ctx context.Context, operationID string) (OperationStatus, error) {
	if err := c.check(); err != nil {
		return OperationStatus{}, err
	}

	endpoint := c.cfg.OperationEndpoint + "/operations/" + url.PathEscape(operationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return OperationStatus{}, fmt.Errorf("failed to create operation request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return OperationStatus{}, fmt.Errorf("failed to poll operation %s: %w", operationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OperationStatus{}, c.statusError("operations", resp)
	}

	var op operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return OperationStatus{}, fmt.Errorf("failed to decode operation response: %w", err)
	}

	status := OperationStatus{Done: op.Done}
	if op.Error != nil {
		status.ErrorMessage = op.Error.Message
	}
	return status, nil
}

// getRecognition streams one JSON object per line.
type recognitionLine struct {
	Result struct {
		ChannelTag string `json:"channelTag"`
		Final      *struct {
			Alternatives []struct {
				Words []Word `json:"words"`
			} `json:"alternatives"`
		} `json:"final"`
	} `json:"result"`
}

func (c *HTTPClient) FetchResult(ctx context.Context, operationID string) ([]Chunk, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	endpoint := c.cfg.RecognizeEndpoint + "/stt/v3/getRecognition?operationId=" + url.QueryEscape(operationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recognition result %s: %w", operationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("getRecognition", resp)
	}

	var chunks []Chunk
	dec := json.NewDecoder(resp.Body)
	for {
		var line recognitionLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode recognition result: %w", err)
		}
		if line.Result.Final == nil || len(line.Result.Final.Alternatives) == 0 {
			continue
		}
		chunks = append(chunks, Chunk{
			ChannelTag: line.Result.ChannelTag,
			Words:      line.Result.Final.Alternatives[0].Words,
		})
	}
	return chunks, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)
	req.Header.Set("x-folder-id", c.cfg.FolderID)
}

func (c *HTTPClient) statusError(call string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: %s returned status %d: %s", ErrRequestFailed, call, resp.StatusCode, string(body))
}
