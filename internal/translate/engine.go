package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultEndpoint = "https://engine.lingo.dev"
	DefaultTimeout  = 15 * time.Second
)

// EngineConfig holds configuration for the hosted localization engine.
type EngineConfig struct {
	// Endpoint is the engine base URL (default: https://engine.lingo.dev).
	Endpoint string

	// APIKey authenticates requests. Empty enables no-credentials mode:
	// BatchLocalize returns ErrNoCredentials without dialing.
	APIKey string

	// Timeout is the request timeout (default: 15s).
	Timeout time.Duration
}

// EngineClient is the HTTP adapter for the localization engine.
type EngineClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// batchLocalizeRequest is the engine's batch request format.
type batchLocalizeRequest struct {
	Text          string   `json:"text"`
	SourceLocale  string   `json:"sourceLocale"`
	TargetLocales []string `json:"targetLocales"`
	Context       string   `json:"context,omitempty"`
}

// batchLocalizeResponse is the engine's batch response format: translated
// strings positionally aligned with the requested locales.
type batchLocalizeResponse struct {
	Translations []string `json:"translations"`
}

// NewEngineClient creates a new engine backend.
func NewEngineClient(cfg EngineConfig) *EngineClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &EngineClient{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}
}

// BatchLocalize translates req.Text to every target locale in one request.
func (c *EngineClient) BatchLocalize(ctx context.Context, req BatchRequest) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredentials
	}

	body, err := json.Marshal(batchLocalizeRequest{
		Text:          req.Text,
		SourceLocale:  req.SourceLocale,
		TargetLocales: req.TargetLocales,
		Context:       req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/localize/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("engine returned %d: %s", resp.StatusCode, string(msg))
	}

	var out batchLocalizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Translations) != len(req.TargetLocales) {
		return nil, fmt.Errorf("engine returned %d translations for %d locales", len(out.Translations), len(req.TargetLocales))
	}
	return out.Translations, nil
}
