package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// OpenAIClient implements LLMClient for the OpenAI API.
type OpenAIClient struct {
	apiKey        string
	model         string
	maxTokens     int
	baseURL       string
	http          *http.Client
	limiter       *rate.Limiter
	logger        zerolog.Logger
	correlationID string
}

// SetCorrelationID sets the value sent as the x-correlation-id header on
// every subsequent request, letting the agent tag requests with its
// conversation's correlation id.
func (c *OpenAIClient) SetCorrelationID(id string) {
	c.correlationID = id
}

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(apiKey, model string, maxTokens int, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   baseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		// One request per second sustained, bursts of 4 — enough headroom for
		// the agent loop's back-to-back tool-result round trips without
		// hammering the API during a runaway iteration.
		limiter: rate.NewLimiter(rate.Limit(1), 4),
		logger:  zerolog.Nop(),
	}
}

// SetLogger installs a structured logger for retry/backoff and SSE-parse
// diagnostics. Defaults to a no-op logger.
func (c *OpenAIClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Close releases idle HTTP connections held by this client.
func (c *OpenAIClient) Close() {
	c.http.CloseIdleConnections()
}

// SendMessage sends a non-streaming request to the OpenAI API.
func (c *OpenAIClient) SendMessage(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	reqBody := ChatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := doWithRetry(ctx, defaultRetryConfig(), func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if c.correlationID != "" {
			req.Header.Set("x-correlation-id", c.correlationID)
		}
		c.logger.Debug().Str("model", c.model).Msg("sending chat completion request")
		return c.http.Do(req)
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("chat completion request failed")
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in API response")
	}

	choice := apiResp.Choices[0]
	return &Response{
		Message:      choice.Message,
		FinishReason: choice.FinishReason,
		Usage:        apiResp.Usage,
	}, nil
}
