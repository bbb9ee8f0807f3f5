// Package translate turns English answers into the target language using a hosted
// API first and a local model as the fallback.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Translator translates text into a target language code
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Chain tries each translator in order, once, each bounded by the same timeout
type Chain struct {
	translators []Translator
	timeout     time.Duration
}

// NewChain builds a chain from the non-nil translators
func NewChain(timeout time.Duration, translators ...Translator) *Chain {
	c := &Chain{timeout: timeout}
	for _, t := range translators {
		if t != nil {
			c.translators = append(c.translators, t)
		}
	}
	return c
}

// Translate returns the first successful translation or the joined errors of all attempts
func (c *Chain) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if len(c.translators) == 0 {
		return "", errors.New("no translator configured")
	}

	var errs []error
	for _, t := range c.translators {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		out, err := c.attempt(ctx, t, text, targetLang)
		if err == nil {
			return out, nil
		}
		slog.Warn("Translator failed", "translator", t.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
	}

	return "", errors.Join(errs...)
}

func (c *Chain) attempt(ctx context.Context, t Translator, text, targetLang string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return t.Translate(ctx, text, targetLang)
}
