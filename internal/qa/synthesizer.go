package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundStatement opens every answer to a knowledge base question without evidence
const NotFoundStatement = "This information was not found in the knowledge base."

var errEmptyCompletion = errors.New("model returned an empty answer")

// Synthesizer turns a question and its evidence into a single complete answer
type Synthesizer struct {
	completer Completer
	maxTokens int
}

// NewSynthesizer creates a synthesizer requesting at most maxTokens per answer
func NewSynthesizer(completer Completer, maxTokens int) *Synthesizer {
	return &Synthesizer{completer: completer, maxTokens: maxTokens}
}

// Synthesize waits for the whole completion; partial output is never returned
func (s *Synthesizer) Synthesize(ctx context.Context, question string, bundle ContextBundle) (string, error) {
	answer, err := s.completer.Complete(ctx, BuildAnswerPrompt(question, bundle), s.maxTokens)
	if err != nil {
		return "", err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errEmptyCompletion
	}

	if bundle.Intent == IntentKnowledgeBase && bundle.Empty() && !mentionsNotFound(answer) {
		answer = NotFoundStatement + "\n\n" + answer
	}
	return answer, nil
}

func mentionsNotFound(answer string) bool {
	return strings.Contains(strings.ToLower(answer), "not found in the knowledge base")
}

// BuildAnswerPrompt builds the synthesis prompt for the given intent and evidence
func BuildAnswerPrompt(question string, bundle ContextBundle) string {
	var b strings.Builder

	switch bundle.Intent {
	case IntentKnowledgeBase:
		b.WriteString("You are a precise building code assistant.\n")
		if bundle.Empty() {
			b.WriteString("No relevant passages were found in the knowledge base for this question.\n")
			fmt.Fprintf(&b, "Begin your answer with the sentence %q and do not guess an answer.\n", NotFoundStatement)
		} else {
			b.WriteString("Answer the user's QUESTION using ONLY the provided CONTEXT.\n")
			fmt.Fprintf(&b, "If the CONTEXT does not contain the answer, reply with the sentence %q.\n", NotFoundStatement)
			b.WriteString("Present your answer using markdown. Use bullet points for lists.\n")
		}
	default:
		b.WriteString("You are an expert assistant. Answer the user's QUESTION from your general knowledge.\n")
		b.WriteString("Use the SEARCH RESULTS as supporting evidence when they are relevant.\n")
	}
	b.WriteString("Your answer must be grammatically correct and professional.\n")
	b.WriteString("Do not repeat any information. Give a single, cohesive, final answer.\n")

	if bundle.Intent == IntentKnowledgeBase {
		if !bundle.Empty() {
			b.WriteString("CONTEXT:\n")
			writePassages(&b, bundle)
		}
	} else {
		b.WriteString("SEARCH RESULTS:\n")
		if bundle.Empty() {
			b.WriteString("No search results were returned.\n")
		} else {
			writePassages(&b, bundle)
		}
	}

	b.WriteString("---\n")
	fmt.Fprintf(&b, "QUESTION: %s\n", question)
	b.WriteString("ANSWER:")
	return b.String()
}

func writePassages(b *strings.Builder, bundle ContextBundle) {
	for i, p := range bundle.Passages {
		if p.Source != "" {
			fmt.Fprintf(b, "[%d] (%s)\n%s\n\n", i+1, p.Source, p.Text)
		} else {
			fmt.Fprintf(b, "[%d]\n%s\n\n", i+1, p.Text)
		}
	}
}
