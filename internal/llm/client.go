package llm

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps OpenAI client and provides completion and embedding methods
type Client struct {
	client       *openai.Client
	model        string
	embedModel   string
	systemPrompt string
}

// NewClient creates a new LLM client with API key.
// Extra options (e.g. option.WithBaseURL) point the client at any OpenAI-compatible server.
func NewClient(apiKey, model, embedModel string, opts ...option.RequestOption) *Client {
	// Retries are owned by the caller; the SDK default of two would multiply them.
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := openai.NewClient(opts...)
	return &Client{
		client:       &client,
		model:        model,
		embedModel:   embedModel,
		systemPrompt: loadSystemPrompt(),
	}
}

// Model returns the chat model used for completions
func (c *Client) Model() string {
	return c.model
}

// WithSystemPrompt replaces the system prompt sent with every completion
func (c *Client) WithSystemPrompt(prompt string) *Client {
	c.systemPrompt = prompt
	return c
}
