package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://openrouter.ai/api/v1"
	defaultModel     = "openai/gpt-4o-mini"
	defaultMaxTokens = 2000
	defaultTemp      = 0.7
	defaultTitle     = "Congressional Bill Browser"
)

// ErrEmptyCompletion is returned when the model answered with no choices.
var ErrEmptyCompletion = errors.New("completion returned no content")

// Completer produces a text completion for a system + user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	referer     string
	title       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type Option func(*ChatClient)

func WithBaseURL(u string) Option {
	return func(c *ChatClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithModel(m string) Option {
	return func(c *ChatClient) {
		if m != "" {
			c.model = m
		}
	}
}

func WithReferer(r string) Option {
	return func(c *ChatClient) { c.referer = r }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *ChatClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func NewChatClient(apiKey string, opts ...Option) *ChatClient {
	c := &ChatClient{
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		model:       defaultModel,
		title:       defaultTitle,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemp,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ChatClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	req.Header.Set("X-Title", c.title)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return parsed.Choices[0].Message.Content, nil
}
