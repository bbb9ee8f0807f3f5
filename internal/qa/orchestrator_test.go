package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/vokinneberg/telugu-qa/internal/types"
)

const testMaxTokens = 512

type temporaryError struct{ msg string }

func (e *temporaryError) Error() string   { return e.msg }
func (e *temporaryError) Temporary() bool { return true }

type pipelineMocks struct {
	completer  *MockCompleter
	store      *MockKnowledgeStore
	web        *MockWebSearcher
	translator *MockTranslator
}

func testOptions() Options {
	return Options{
		KnowledgeTopic:   "building rules",
		KnowledgeLimit:   4,
		WebSearchLimit:   3,
		MaxTokens:        testMaxTokens,
		RouteTimeout:     time.Second,
		RetrieveTimeout:  time.Second,
		SynthesisTimeout: time.Second,
		RetryBackoff:     time.Millisecond,
	}
}

func newTestOrchestrator(ctrl *gomock.Controller, opts Options) (*Orchestrator, pipelineMocks) {
	m := pipelineMocks{
		completer:  NewMockCompleter(ctrl),
		store:      NewMockKnowledgeStore(ctrl),
		web:        NewMockWebSearcher(ctrl),
		translator: NewMockTranslator(ctrl),
	}
	return New(m.completer, m.store, m.web, m.translator, opts), m
}

type promptContaining string

func (p promptContaining) Matches(x interface{}) bool {
	prompt, ok := x.(string)
	return ok && strings.Contains(prompt, string(p))
}

func (p promptContaining) String() string {
	return fmt.Sprintf("prompt containing %q", string(p))
}

func expectRoute(m pipelineMocks, label string) {
	m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), routeMaxTokens).Return(label, nil)
}

func TestOrchestrator_Ask(t *testing.T) {
	refund := types.Passage{Text: "Refunds are issued within 30 days of purchase.", Source: "policy.pdf, page 2", Score: 0.92}

	tests := []struct {
		name         string
		question     string
		setupMocks   func(pipelineMocks)
		wantEnglish  string
		wantTelugu   string
		wantIntent   Intent
		wantDegraded bool
		wantSources  []string
		wantErr      error
		wantStage    Stage
	}{
		{
			name:     "refund policy is answered from the knowledge base",
			question: "What is the refund policy?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "knowledge_base")
				m.store.EXPECT().Search(gomock.Any(), "What is the refund policy?", 4).Return([]types.Passage{refund}, nil)
				m.completer.EXPECT().Complete(gomock.Any(), promptContaining(refund.Text), testMaxTokens).
					Return("Refunds are issued within 30 days of purchase.", nil)
				m.translator.EXPECT().Translate(gomock.Any(), "Refunds are issued within 30 days of purchase.", "te").
					Return("కొనుగోలు చేసిన 30 రోజుల్లో రీఫండ్‌లు జారీ చేయబడతాయి.", nil)
			},
			wantEnglish: "Refunds are issued within 30 days of purchase.",
			wantTelugu:  "కొనుగోలు చేసిన 30 రోజుల్లో రీఫండ్‌లు జారీ చేయబడతాయి.",
			wantIntent:  IntentKnowledgeBase,
			wantSources: []string{"policy.pdf, page 2"},
		},
		{
			name:     "capital of France is answered from web search",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), "What is the capital of France?", 3).Return([]types.Passage{
					{Text: "France: Paris is the capital and largest city of France.", Source: "https://en.wikipedia.org/wiki/France"},
				}, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Paris", nil)
				m.translator.EXPECT().Translate(gomock.Any(), "Paris", "te").Return("పారిస్", nil)
			},
			wantEnglish: "Paris",
			wantTelugu:  "పారిస్",
			wantIntent:  IntentWebSearch,
			wantSources: []string{"https://en.wikipedia.org/wiki/France"},
		},
		{
			name:     "empty knowledge base still produces an answer",
			question: "What is the fee for a swimming pool permit?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "knowledge_base")
				m.store.EXPECT().Search(gomock.Any(), gomock.Any(), 4).Return(nil, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("I don't know.", nil)
				m.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), "te").Return("నాకు తెలియదు.", nil)
			},
			wantEnglish: NotFoundStatement + "\n\nI don't know.",
			wantTelugu:  "నాకు తెలియదు.",
			wantIntent:  IntentKnowledgeBase,
		},
		{
			name:     "translation failure degrades with the sentinel",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Paris", nil)
				m.translator.EXPECT().Translate(gomock.Any(), "Paris", "te").Return("", errors.New("google: quota exceeded; local-llm: connection refused"))
			},
			wantEnglish:  "Paris",
			wantTelugu:   TeluguUnavailable,
			wantIntent:   IntentWebSearch,
			wantDegraded: true,
		},
		{
			name:     "empty translation degrades with the sentinel",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Paris", nil)
				m.translator.EXPECT().Translate(gomock.Any(), "Paris", "te").Return("  ", nil)
			},
			wantEnglish:  "Paris",
			wantTelugu:   TeluguUnavailable,
			wantIntent:   IntentWebSearch,
			wantDegraded: true,
		},
		{
			name:     "routing failure falls back to web search",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), routeMaxTokens).Return("", errors.New("connection reset"))
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Paris", nil)
				m.translator.EXPECT().Translate(gomock.Any(), "Paris", "te").Return("పారిస్", nil)
			},
			wantEnglish: "Paris",
			wantTelugu:  "పారిస్",
			wantIntent:  IntentWebSearch,
		},
		{
			name:     "transient retrieval failure is retried once",
			question: "What is the refund policy?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "knowledge_base")
				gomock.InOrder(
					m.store.EXPECT().Search(gomock.Any(), gomock.Any(), 4).Return(nil, &temporaryError{"unavailable"}),
					m.store.EXPECT().Search(gomock.Any(), gomock.Any(), 4).Return([]types.Passage{refund}, nil),
				)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Within 30 days.", nil)
				m.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), "te").Return("30 రోజుల్లో.", nil)
			},
			wantEnglish: "Within 30 days.",
			wantTelugu:  "30 రోజుల్లో.",
			wantIntent:  IntentKnowledgeBase,
			wantSources: []string{"policy.pdf, page 2"},
		},
		{
			name:     "retrieval fails after one retry",
			question: "What is the refund policy?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "knowledge_base")
				m.store.EXPECT().Search(gomock.Any(), gomock.Any(), 4).Return(nil, &temporaryError{"unavailable"}).Times(2)
			},
			wantErr:   ErrRetrieval,
			wantStage: StageContextGathered,
		},
		{
			name:     "non transient retrieval failure is not retried",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, errors.New("invalid api key")).Times(1)
			},
			wantErr:   ErrRetrieval,
			wantStage: StageContextGathered,
		},
		{
			name:     "transient synthesis failure is retried once",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
				gomock.InOrder(
					m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("", &temporaryError{"503"}),
					m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Paris", nil),
				)
				m.translator.EXPECT().Translate(gomock.Any(), "Paris", "te").Return("పారిస్", nil)
			},
			wantEnglish: "Paris",
			wantTelugu:  "పారిస్",
			wantIntent:  IntentWebSearch,
		},
		{
			name:     "synthesis fails after one retry",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("", &temporaryError{"503"}).Times(2)
			},
			wantErr:   ErrSynthesis,
			wantStage: StageSynthesized,
		},
		{
			name:     "empty completion is not retried",
			question: "What is the capital of France?",
			setupMocks: func(m pipelineMocks) {
				expectRoute(m, "web_search")
				m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
				m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("", nil).Times(1)
			},
			wantErr:   ErrSynthesis,
			wantStage: StageSynthesized,
		},
		{
			name:       "empty question",
			question:   "  \n\t ",
			setupMocks: func(pipelineMocks) {},
			wantErr:    ErrInvalidQuestion,
		},
		{
			name:       "question too long",
			question:   strings.Repeat("అ", MaxQuestionLength+1),
			setupMocks: func(pipelineMocks) {},
			wantErr:    ErrInvalidQuestion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			orchestrator, m := newTestOrchestrator(ctrl, testOptions())
			tt.setupMocks(m)

			answer, err := orchestrator.Ask(context.Background(), tt.question)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Ask() error = %v, want %v", err, tt.wantErr)
				}
				if tt.wantStage != "" {
					var stageErr *StageError
					if !errors.As(err, &stageErr) {
						t.Fatalf("Ask() error %T is not a *StageError", err)
					}
					if stageErr.Stage != tt.wantStage {
						t.Errorf("Ask() failed at %s, want %s", stageErr.Stage, tt.wantStage)
					}
				}
				if answer != nil {
					t.Errorf("Ask() returned an answer alongside an error")
				}
				return
			}

			if err != nil {
				t.Fatalf("Ask() unexpected error: %v", err)
			}
			if answer.English == "" {
				t.Fatal("Ask() returned an empty English answer")
			}
			if answer.English != tt.wantEnglish {
				t.Errorf("Ask() English = %q, want %q", answer.English, tt.wantEnglish)
			}
			if answer.Telugu != tt.wantTelugu {
				t.Errorf("Ask() Telugu = %q, want %q", answer.Telugu, tt.wantTelugu)
			}
			if answer.Intent != tt.wantIntent {
				t.Errorf("Ask() Intent = %v, want %v", answer.Intent, tt.wantIntent)
			}
			if answer.Degraded != tt.wantDegraded {
				t.Errorf("Ask() Degraded = %v, want %v", answer.Degraded, tt.wantDegraded)
			}
			if strings.Join(answer.Sources, "|") != strings.Join(tt.wantSources, "|") {
				t.Errorf("Ask() Sources = %q, want %q", answer.Sources, tt.wantSources)
			}
		})
	}
}

func TestOrchestrator_Ask_Timeouts(t *testing.T) {
	block := func(ctx context.Context, _ string, _ int) ([]types.Passage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	t.Run("retrieval timeout aborts without retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		opts := testOptions()
		opts.RetrieveTimeout = 20 * time.Millisecond
		orchestrator, m := newTestOrchestrator(ctrl, opts)

		expectRoute(m, "knowledge_base")
		m.store.EXPECT().Search(gomock.Any(), gomock.Any(), 4).DoAndReturn(block).Times(1)

		_, err := orchestrator.Ask(context.Background(), "What is the refund policy?")
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("Ask() error = %v, want ErrRetrieval", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Ask() error = %v, want it to wrap context.DeadlineExceeded", err)
		}
	})

	t.Run("synthesis timeout aborts without retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		opts := testOptions()
		opts.SynthesisTimeout = 20 * time.Millisecond
		orchestrator, m := newTestOrchestrator(ctrl, opts)

		expectRoute(m, "web_search")
		m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
		m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).DoAndReturn(
			func(ctx context.Context, _ string, _ int) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}).Times(1)

		_, err := orchestrator.Ask(context.Background(), "What is the capital of France?")
		if !errors.Is(err, ErrSynthesis) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Ask() error = %v, want synthesis deadline failure", err)
		}
	})

	t.Run("cancelled request stops at retrieval", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		orchestrator, m := newTestOrchestrator(ctrl, testOptions())

		ctx, cancel := context.WithCancel(context.Background())
		expectRoute(m, "web_search")
		m.web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).DoAndReturn(
			func(ctx context.Context, _ string, _ int) ([]types.Passage, error) {
				cancel()
				return nil, ctx.Err()
			}).Times(1)

		_, err := orchestrator.Ask(ctx, "What is the capital of France?")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Ask() error = %v, want context.Canceled", err)
		}
	})
}

func TestOrchestrator_Ask_NoTranslator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	completer := NewMockCompleter(ctrl)
	web := NewMockWebSearcher(ctrl)
	orchestrator := New(completer, NewMockKnowledgeStore(ctrl), web, nil, testOptions())

	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), routeMaxTokens).Return("web_search", nil)
	web.EXPECT().Search(gomock.Any(), gomock.Any(), 3).Return(nil, nil)
	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Paris", nil)

	answer, err := orchestrator.Ask(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask() unexpected error: %v", err)
	}
	if answer.Telugu != TeluguUnavailable || !answer.Degraded {
		t.Errorf("Ask() = %+v, want degraded answer with sentinel", answer)
	}
}

func TestOrchestrator_Ask_IndependentRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orchestrator, m := newTestOrchestrator(ctrl, testOptions())
	passage := types.Passage{Text: "Refunds are issued within 30 days.", Source: "policy.pdf, page 2"}

	m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), routeMaxTokens).Return("knowledge_base", nil).Times(2)
	m.store.EXPECT().Search(gomock.Any(), gomock.Any(), 4).Return([]types.Passage{passage}, nil).Times(2)
	m.completer.EXPECT().Complete(gomock.Any(), gomock.Any(), testMaxTokens).Return("Within 30 days.", nil).Times(2)
	m.translator.EXPECT().Translate(gomock.Any(), "Within 30 days.", "te").Return("30 రోజుల్లో.", nil).Times(2)

	first, err := orchestrator.Ask(context.Background(), "What is the refund policy?")
	if err != nil {
		t.Fatalf("first Ask() unexpected error: %v", err)
	}
	first.Sources[0] = "mutated"
	first.English = "mutated"

	second, err := orchestrator.Ask(context.Background(), "What is the refund policy?")
	if err != nil {
		t.Fatalf("second Ask() unexpected error: %v", err)
	}
	if second == first {
		t.Fatal("Ask() reused the previous answer")
	}
	if second.English != "Within 30 days." || second.Sources[0] != "policy.pdf, page 2" {
		t.Errorf("second Ask() = %+v, state leaked from the first run", second)
	}
}

func TestStageError(t *testing.T) {
	cause := &temporaryError{"qdrant unavailable"}
	err := error(&StageError{Stage: StageContextGathered, Kind: ErrRetrieval, Err: cause})

	if !errors.Is(err, ErrRetrieval) {
		t.Error("errors.Is(err, ErrRetrieval) = false")
	}
	var temp *temporaryError
	if !errors.As(err, &temp) {
		t.Error("errors.As(err, *temporaryError) = false")
	}
	if !strings.Contains(err.Error(), "context_gathered") {
		t.Errorf("Error() = %q, want it to name the stage", err.Error())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "temporary", err: &temporaryError{"503"}, want: true},
		{name: "wrapped temporary", err: errors.Join(errors.New("search"), &temporaryError{"429"}), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("invalid api key"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
