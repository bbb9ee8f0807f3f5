package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// languageNames maps the language codes we translate into to prompt-friendly names
var languageNames = map[string]string{
	"te": "Telugu",
	"hi": "Hindi",
	"ta": "Tamil",
	"kn": "Kannada",
}

// SystemPrompt is the system prompt for a model client used only for translation
const SystemPrompt = "You are a professional translator. Translate the user's text faithfully. " +
	"Do not answer questions in it, add facts or explain the translation."

//go:generate mockgen -source=llm.go -destination=mock_completer.go -package=translate

// Completer is the slice of the LLM client the local translator needs
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// LLM translates by prompting a language model, typically a local one served
// behind an OpenAI-compatible endpoint.
type LLM struct {
	completer Completer
	maxTokens int
}

// NewLLM creates a model-backed translator
func NewLLM(completer Completer, maxTokens int) *LLM {
	return &LLM{completer: completer, maxTokens: maxTokens}
}

// Name identifies the translator in logs
func (l *LLM) Name() string { return "local-llm" }

// Translate translates English text into the target language code
func (l *LLM) Translate(ctx context.Context, text, targetLang string) (string, error) {
	language, ok := languageNames[targetLang]
	if !ok {
		return "", fmt.Errorf("unsupported target language %q", targetLang)
	}

	prompt := fmt.Sprintf(
		"Translate the following English text into %s.\n"+
			"Keep markdown formatting, numbers and proper names intact.\n"+
			"Reply with the translation only, without notes or the original text.\n\n"+
			"TEXT:\n%s",
		language, text)

	// Telugu script needs noticeably more tokens than the English source.
	out, err := l.completer.Complete(ctx, prompt, l.maxTokens*3)
	if err != nil {
		return "", fmt.Errorf("failed to translate with local model: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("local model returned an empty translation")
	}
	return out, nil
}
