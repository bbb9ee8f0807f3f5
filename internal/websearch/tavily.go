// Package websearch queries a hosted web search API for general knowledge questions.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/vokinneberg/telugu-qa/internal/types"
)

const defaultBaseURL = "https://api.tavily.com"

// StatusError is returned when the search API answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tavily: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Tavily is a client of the Tavily search API
type Tavily struct {
	client *resty.Client
	apiKey string
}

// NewTavily creates a Tavily client. An empty baseURL selects the public endpoint.
func NewTavily(apiKey, baseURL string) *Tavily {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)

	return &Tavily{client: client, apiKey: apiKey}
}

// Search returns up to k result snippets for the query, in the order ranked by the API
func (t *Tavily) Search(ctx context.Context, query string, k int) ([]types.Passage, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(t.apiKey).
		SetBody(map[string]any{
			"query":        query,
			"max_results":  k,
			"search_depth": "basic",
		}).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("failed to call tavily: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, errors.New("tavily: invalid JSON response")
	}

	passages := make([]types.Passage, 0, k)
	gjson.GetBytes(body, "results").ForEach(func(_, result gjson.Result) bool {
		content := strings.TrimSpace(result.Get("content").String())
		if content == "" {
			return true
		}
		source := result.Get("url").String()
		if title := result.Get("title").String(); title != "" {
			content = title + ": " + content
		}
		passages = append(passages, types.Passage{
			Text:   content,
			Source: source,
			Score:  result.Get("score").Float(),
		})
		return len(passages) < k
	})

	return passages, nil
}
