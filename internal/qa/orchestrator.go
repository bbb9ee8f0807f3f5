// Package qa answers questions through a fixed pipeline: classify the question,
// gather evidence from exactly one source, synthesize an English answer and
// translate it.
package qa

//go:generate mockgen -source=orchestrator.go -destination=mock_orchestrator.go -package=qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"github.com/vokinneberg/telugu-qa/internal/types"
)

// Completer produces a complete model answer for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// KnowledgeStore searches the ingested documents
type KnowledgeStore interface {
	Search(ctx context.Context, query string, k int) ([]types.Passage, error)
}

// WebSearcher searches the public web
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]types.Passage, error)
}

// Translator translates text into a target language code
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Stage names a step of the pipeline
type Stage string

const (
	StageReceived        Stage = "received"
	StageRouted          Stage = "routed"
	StageContextGathered Stage = "context_gathered"
	StageSynthesized     Stage = "synthesized"
	StageTranslated      Stage = "translated"
	StageResponded       Stage = "responded"
)

const (
	// MaxQuestionLength bounds the question in runes
	MaxQuestionLength = 4000

	// TeluguUnavailable replaces the translation when every translator failed
	TeluguUnavailable = "[Translation not available]"

	// maxRetries is the number of extra attempts after a transient failure
	maxRetries = 1
)

// Options tunes the pipeline
type Options struct {
	KnowledgeTopic   string
	KnowledgeLimit   int
	WebSearchLimit   int
	MaxTokens        int
	RouteTimeout     time.Duration
	RetrieveTimeout  time.Duration
	SynthesisTimeout time.Duration
	RetryBackoff     time.Duration
	TargetLanguage   string
}

// Answer is the bilingual result of one pipeline run
type Answer struct {
	English  string
	Telugu   string
	Intent   Intent
	Sources  []string
	Degraded bool
}

// Orchestrator runs the pipeline. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	router      *Router
	retriever   *Retriever
	synthesizer *Synthesizer
	translator  Translator
	opts        Options
}

// New wires the pipeline from its collaborators. The translator may be nil, in
// which case every answer is degraded.
func New(completer Completer, store KnowledgeStore, web WebSearcher, translator Translator, opts Options) *Orchestrator {
	if opts.TargetLanguage == "" {
		opts.TargetLanguage = "te"
	}
	return &Orchestrator{
		router:      NewRouter(completer, opts.KnowledgeTopic, opts.RouteTimeout),
		retriever:   NewRetriever(store, web, opts.KnowledgeLimit, opts.WebSearchLimit),
		synthesizer: NewSynthesizer(completer, opts.MaxTokens),
		translator:  translator,
		opts:        opts,
	}
}

// Ask answers a question. Validation failures wrap ErrInvalidQuestion; retrieval
// and synthesis failures are returned as *StageError. Translation failures
// never fail the request.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidQuestion)
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionLength {
		return nil, fmt.Errorf("%w: question has %d characters, limit is %d", ErrInvalidQuestion, n, MaxQuestionLength)
	}
	logStage(StageReceived, start)

	decision := o.router.Route(ctx, question)
	logStage(StageRouted, start, "intent", decision.Intent, "defaulted", decision.Defaulted)

	var bundle ContextBundle
	err := o.withRetry(ctx, StageContextGathered, o.opts.RetrieveTimeout, func(ctx context.Context) error {
		var err error
		bundle, err = o.retriever.Gather(ctx, decision.Intent, question)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: StageContextGathered, Kind: ErrRetrieval, Err: err}
	}
	logStage(StageContextGathered, start, "intent", bundle.Intent, "passages", len(bundle.Passages))

	var english string
	err = o.withRetry(ctx, StageSynthesized, o.opts.SynthesisTimeout, func(ctx context.Context) error {
		var err error
		english, err = o.synthesizer.Synthesize(ctx, question, bundle)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: StageSynthesized, Kind: ErrSynthesis, Err: err}
	}
	logStage(StageSynthesized, start, "length", len(english))

	answer := &Answer{
		English: english,
		Intent:  decision.Intent,
		Sources: bundle.Sources(),
	}
	answer.Telugu, answer.Degraded = o.translate(ctx, english)
	logStage(StageTranslated, start, "degraded", answer.Degraded)

	logStage(StageResponded, start)
	return answer, nil
}

func (o *Orchestrator) translate(ctx context.Context, english string) (string, bool) {
	if o.translator == nil {
		slog.Warn("No translator configured, returning English only")
		return TeluguUnavailable, true
	}

	telugu, err := o.translator.Translate(ctx, english, o.opts.TargetLanguage)
	if err != nil {
		slog.Warn("Translation failed, returning English only", "error", err)
		return TeluguUnavailable, true
	}
	telugu = strings.TrimSpace(telugu)
	if telugu == "" {
		slog.Warn("Translation was empty, returning English only")
		return TeluguUnavailable, true
	}
	return telugu, false
}

// withRetry runs fn under its own timeout and repeats it once when the failure
// is transient. Timeouts and cancellations end the stage immediately.
func (o *Orchestrator) withRetry(ctx context.Context, stage Stage, timeout time.Duration, fn func(context.Context) error) error {
	backoff := o.opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}

	attempt := 0
	return retry.Do(ctx, retry.WithMaxRetries(maxRetries, retry.NewConstant(backoff)), func(ctx context.Context) error {
		attempt++
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) && attempt <= maxRetries {
			slog.Warn("Transient failure, retrying", "stage", stage, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func logStage(stage Stage, start time.Time, attrs ...any) {
	slog.Debug("Pipeline stage reached", append([]any{"stage", stage, "duration", time.Since(start)}, attrs...)...)
}
