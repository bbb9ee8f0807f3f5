package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const defaultGoogleBaseURL = "https://translation.googleapis.com"

// StatusError is returned when the translation API answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("google translate: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether repeating the request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Google translates text with the Cloud Translation v2 REST API
type Google struct {
	client *resty.Client
	apiKey string
}

// NewGoogle creates a Cloud Translation client. An empty baseURL selects the public endpoint.
func NewGoogle(apiKey, baseURL string) *Google {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	return &Google{client: client, apiKey: apiKey}
}

// Name identifies the translator in logs
func (g *Google) Name() string { return "google" }

// Translate translates English text into the target language code (e.g. "te")
func (g *Google) Translate(ctx context.Context, text, targetLang string) (string, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(map[string]string{
			"q":      text,
			"source": "en",
			"target": targetLang,
			"format": "text",
		}).
		Post("/language/translate/v2")
	if err != nil {
		return "", fmt.Errorf("failed to call google translate: %w", err)
	}

	body := resp.Body()
	if resp.IsError() {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &StatusError{StatusCode: resp.StatusCode(), Message: msg}
	}

	translated := gjson.GetBytes(body, "data.translations.0.translatedText")
	if !translated.Exists() || strings.TrimSpace(translated.String()) == "" {
		return "", errors.New("google translate: empty translation in response")
	}

	return translated.String(), nil
}
