// Package ai provides the black-box model capability the boundary filter
// depends on: invoke(prompt, context) -> text. The shipped implementation
// talks to a local Ollama instance over HTTP; tests substitute stubs.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Invoker is the single capability the core needs from a model.
type Invoker interface {
	Invoke(ctx context.Context, prompt, systemContext string) (string, error)
}

// Message is a chat message in the Ollama API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema describes the expected JSON output structure for structured
// chat responses.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Client communicates with a local Ollama instance over HTTP.
type Client struct {
	baseURL    string
	model      string
	format     *Schema
	httpClient *http.Client
}

// NewClient creates a Client targeting the given Ollama base URL and
// model. Per-call deadlines come from the caller's context, so the
// underlying HTTP client carries no timeout of its own.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// WithFormat constrains responses to the given JSON schema.
func (c *Client) WithFormat(schema *Schema) *Client {
	c.format = schema
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   *Schema   `json:"format,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Invoke sends one non-streaming chat request and returns the model's
// reply text.
func (c *Client) Invoke(ctx context.Context, prompt, systemContext string) (string, error) {
	msgs := make([]Message, 0, 2)
	if systemContext != "" {
		msgs = append(msgs, Message{Role: "system", Content: systemContext})
	}
	msgs = append(msgs, Message{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   false,
		Format:   c.format,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return parsed.Message.Content, nil
}

// IsRunning returns true if the Ollama server responds to GET /api/tags.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
