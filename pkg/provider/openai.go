package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultAPIBase = "https://api.openai.com/v1"

// OpenAICompatible talks to any endpoint speaking the OpenAI chat
// completions protocol. The zero value is not usable; use
// NewOpenAICompatible.
type OpenAICompatible struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewOpenAICompatible builds a client. baseURL may be empty for the
// hosted OpenAI endpoint.
func NewOpenAICompatible(baseURL, apiKey, model string) *OpenAICompatible {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	return &OpenAICompatible{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate performs one chat completion call. HTTP 408/429/5xx are
// reported as transient so the retrying wrapper can back off; other
// non-200 statuses are fatal.
func (c *OpenAICompatible) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Result, error) {
	model := opts.Model
	if model == "" {
		model = c.Model
	}
	payload := chatRequest{
		Model:       model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &FatalError{Cause: fmt.Errorf("encoding request: %w", err)}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &TransientError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &TransientError{Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		cause := fmt.Errorf("provider error %d: %s", resp.StatusCode, truncate(string(raw), 500))
		switch {
		case resp.StatusCode == http.StatusRequestTimeout,
			resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= 500:
			return nil, &TransientError{Cause: cause}
		default:
			return nil, &FatalError{Cause: cause}
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &TransientError{Cause: fmt.Errorf("decoding response: %w", err)}
	}
	if decoded.Error != nil {
		return nil, &FatalError{Cause: fmt.Errorf("provider error: %s", decoded.Error.Message)}
	}
	if len(decoded.Choices) == 0 {
		return nil, &TransientError{Cause: fmt.Errorf("provider returned no choices")}
	}

	return &Result{
		Content:  decoded.Choices[0].Message.Content,
		Tokens:   decoded.Usage.TotalTokens,
		Provider: c.BaseURL,
		Model:    model,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
