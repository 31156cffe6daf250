package recommend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/segmentio/encoding/json"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-4o-mini"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=recommend_test -destination=mock_http_client_test.go -source=openai.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAI is a Completer backed by the chat completions endpoint.
type OpenAI struct {
	// baseURL is the base URL for the API.
	baseURL string
	// model is the chat model name.
	model string
	// temperature is sent with every request.
	temperature float64
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains the headers sent with each request.
	header http.Header
}

// OpenAIOption is a configuration option for the OpenAI client.
type OpenAIOption func(*OpenAI)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAI) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) OpenAIOption {
	return func(c *OpenAI) {
		c.httpClient = httpClient
	}
}

// WithModel sets the chat model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAI) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) OpenAIOption {
	return func(c *OpenAI) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewOpenAI creates a chat completions client authenticated with key.
func NewOpenAI(key string, options ...OpenAIOption) *OpenAI {
	c := &OpenAI{
		baseURL:     openAIBaseURL,
		model:       openAIModel,
		temperature: 0.3,
		httpClient:  http.DefaultClient,
		header:      http.Header{},
	}
	if key != "" {
		c.header.Set("Authorization", "Bearer "+key)
	}
	c.header.Set("Content-Type", "application/json")
	for _, option := range options {
		option(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the prompts and returns the first choice's text.
func (c *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if res.StatusCode != http.StatusOK {
			return "", fmt.Errorf("openai: unexpected status %d", res.StatusCode)
		}
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", fmt.Errorf("openai: %s", out.Error.Message)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: unexpected status %d", res.StatusCode)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrNoContent
	}
	return out.Choices[0].Message.Content, nil
}
