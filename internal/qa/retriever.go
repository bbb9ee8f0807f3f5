package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/vokinneberg/telugu-qa/internal/types"
)

// ContextBundle is the evidence handed to synthesis. An empty bundle is valid.
type ContextBundle struct {
	Intent   Intent
	Passages []types.Passage
}

// Empty reports whether no evidence was found
func (b ContextBundle) Empty() bool {
	return len(b.Passages) == 0
}

// Sources lists the distinct passage sources in order
func (b ContextBundle) Sources() []string {
	seen := make(map[string]struct{}, len(b.Passages))
	var sources []string
	for _, p := range b.Passages {
		if p.Source == "" {
			continue
		}
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		sources = append(sources, p.Source)
	}
	return sources
}

// Retriever runs exactly one retrieval branch per question
type Retriever struct {
	store          KnowledgeStore
	web            WebSearcher
	knowledgeLimit int
	webLimit       int
}

// NewRetriever creates a retriever over both collaborators
func NewRetriever(store KnowledgeStore, web WebSearcher, knowledgeLimit, webLimit int) *Retriever {
	return &Retriever{
		store:          store,
		web:            web,
		knowledgeLimit: knowledgeLimit,
		webLimit:       webLimit,
	}
}

// Gather calls the collaborator selected by intent. Errors are returned as is;
// the other branch is never substituted.
func (r *Retriever) Gather(ctx context.Context, intent Intent, question string) (ContextBundle, error) {
	bundle := ContextBundle{Intent: intent}

	switch intent {
	case IntentKnowledgeBase:
		passages, err := r.store.Search(ctx, question, r.knowledgeLimit)
		if err != nil {
			return bundle, fmt.Errorf("knowledge base search: %w", err)
		}
		bundle.Passages = limit(dedupe(passages), r.knowledgeLimit)
	case IntentWebSearch:
		passages, err := r.web.Search(ctx, question, r.webLimit)
		if err != nil {
			return bundle, fmt.Errorf("web search: %w", err)
		}
		bundle.Passages = limit(passages, r.webLimit)
	default:
		return bundle, fmt.Errorf("unknown intent %v", intent)
	}

	return bundle, nil
}

// dedupe drops passages whose whitespace-normalized text was already seen.
// Overlapping chunks of the same page are common in the knowledge base.
func dedupe(passages []types.Passage) []types.Passage {
	seen := make(map[string]struct{}, len(passages))
	out := make([]types.Passage, 0, len(passages))
	for _, p := range passages {
		key := strings.Join(strings.Fields(p.Text), " ")
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func limit(passages []types.Passage, k int) []types.Passage {
	if k > 0 && len(passages) > k {
		return passages[:k]
	}
	return passages
}
