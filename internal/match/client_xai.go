package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// XAIClient talks to the xAI (Grok) chat-completions API.
type XAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	log         *zap.Logger
	mu          sync.Mutex
	lastRequest time.Time
}

// XAIConfig holds configuration for the xAI client.
type XAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultXAIConfig returns sensible defaults.
func DefaultXAIConfig(apiKey string) XAIConfig {
	return XAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.x.ai/v1",
		Model:   "grok-4-1-fast-non-reasoning",
		Timeout: 60 * time.Second,
	}
}

// NewXAIClient creates a new xAI client with default config.
func NewXAIClient(apiKey string, log *zap.Logger) *XAIClient {
	return NewXAIClientWithConfig(DefaultXAIConfig(apiKey), log)
}

// NewXAIClientWithConfig creates a new xAI client with custom config.
func NewXAIClientWithConfig(config XAIConfig, log *zap.Logger) *XAIClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &XAIClient{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		log:     log,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type xaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type xaiRequest struct {
	Model       string       `json:"model"`
	Messages    []xaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
}

type xaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt and returns the completion text.
func (c *XAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	// Auto-apply the client timeout if the context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	start := time.Now()
	c.log.Debug("xai request", zap.String("model", c.model), zap.Int("prompt_len", len(prompt)))

	// Space requests out a little.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := xaiRequest{
		Model:       c.model,
		Messages:    []xaiMessage{{Role: "user", Content: prompt}},
		MaxTokens:   2000,
		Temperature: 0.1,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry loop for rate limits and transient transport failures.
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var xr xaiResponse
		if err := json.Unmarshal(body, &xr); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if xr.Error != nil {
			return "", fmt.Errorf("API error: %s", xr.Error.Message)
		}
		if len(xr.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		text := strings.TrimSpace(xr.Choices[0].Message.Content)
		c.log.Debug("xai response", zap.Duration("elapsed", time.Since(start)), zap.Int("response_len", len(text)))
		return text, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SetModel changes the model used for completions.
func (c *XAIClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *XAIClient) GetModel() string {
	return c.model
}
