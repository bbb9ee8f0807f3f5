package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const defaultSystemPrompt = "You are a careful assistant. Follow the instructions in the user message exactly and never invent facts."

// TransientError marks a failure that may succeed when the same call is repeated
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string   { return e.Err.Error() }
func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Temporary() bool { return true }

// Complete sends a single prompt and waits for the full completion text
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: param.Opt[float64]{Value: 0.1},
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.Opt[int64]{Value: int64(maxTokens)}
	}

	res, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("failed to generate completion: %w", err))
	}

	if len(res.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(res.Choices[0].Message.Content), nil
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	input := openai.EmbeddingNewParamsInputUnion{
		OfString: param.Opt[string]{Value: text},
	}
	res, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: input,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to generate embedding: %w", err))
	}

	if len(res.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}

	// Convert []float64 to []float32 for Qdrant
	embedding := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// classify wraps rate limits and server side failures as transient
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return &TransientError{Err: err}
		}
		return err
	}
	// Deadlines are enforced by the caller and are final.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// No API error and no deadline: the request failed on the network.
	return &TransientError{Err: err}
}

func loadSystemPrompt() string {
	promptPaths := []string{
		"prompts/system_prompt.txt",
		"../prompts/system_prompt.txt",
	}
	for _, path := range promptPaths {
		if p, err := loadPrompt(path); err == nil && p != "" {
			return p
		}
	}
	return defaultSystemPrompt
}

// loadPrompt loads a prompt from a file
func loadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
