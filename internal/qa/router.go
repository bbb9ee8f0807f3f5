package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Intent selects the retrieval branch that serves a question
type Intent int

const (
	// IntentWebSearch is the zero value so that an unset intent is the safe default.
	IntentWebSearch Intent = iota
	IntentKnowledgeBase
)

func (i Intent) String() string {
	switch i {
	case IntentKnowledgeBase:
		return "knowledge_base"
	case IntentWebSearch:
		return "web_search"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// routeMaxTokens is enough for a single label
const routeMaxTokens = 16

// RouteDecision is the outcome of classifying one question
type RouteDecision struct {
	Intent Intent
	// Raw is the classifier output, empty when the call failed.
	Raw string
	// Defaulted is set when the classifier failed or answered outside the label set.
	Defaulted bool
}

// Router classifies questions with a single prompted completion
type Router struct {
	completer Completer
	topic     string
	timeout   time.Duration
}

// NewRouter creates a router for a knowledge base covering the given topic
func NewRouter(completer Completer, topic string, timeout time.Duration) *Router {
	return &Router{completer: completer, topic: topic, timeout: timeout}
}

// Route never fails: classifier errors and unparseable labels fall back to web search
func (r *Router) Route(ctx context.Context, question string) RouteDecision {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	raw, err := r.completer.Complete(ctx, buildRoutePrompt(r.topic, question), routeMaxTokens)
	if err != nil {
		slog.Warn("Routing failed, defaulting to web search", "error", err)
		return RouteDecision{Intent: IntentWebSearch, Defaulted: true}
	}

	intent, ok := ParseIntent(raw)
	if !ok {
		slog.Warn("Unrecognised routing label, defaulting to web search", "label", raw)
	}
	return RouteDecision{Intent: intent, Raw: raw, Defaulted: !ok}
}

var labelNormalizer = strings.NewReplacer(" ", "_", "-", "_")

// ParseIntent maps classifier output to an intent. Output that names exactly one
// label is accepted; anything else yields IntentWebSearch and false.
func ParseIntent(raw string) (Intent, bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, "`'\".:*[](){} \t\n")
	label = labelNormalizer.Replace(label)

	switch label {
	case "knowledge_base":
		return IntentKnowledgeBase, true
	case "web_search":
		return IntentWebSearch, true
	}

	kb := strings.Contains(label, "knowledge_base")
	web := strings.Contains(label, "web_search")
	switch {
	case kb && !web:
		return IntentKnowledgeBase, true
	case web && !kb:
		return IntentWebSearch, true
	default:
		return IntentWebSearch, false
	}
}

func buildRoutePrompt(topic, question string) string {
	return fmt.Sprintf(`Classify the user's question into exactly one label: 'knowledge_base' or 'web_search'.
- Use 'knowledge_base' for questions about %s.
- Use 'web_search' for all other general knowledge questions.
Reply with the label only.
USER QUESTION: %s
Classification:`, topic, question)
}
