// Package llm defines the narrow interface the orchestrator's optional
// free-text intent fallback depends on, plus swappable adapters for the
// providers the corpus wires (Anthropic, OpenAI, Bedrock). The regex intent
// table in pkg/orchestrator never requires this package; it is consulted
// only when a query classifies as the "general" category and a Client has
// been configured, asking the model to pick from the closed set of
// specialist categories rather than free-form text.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Request asks a Client to pick one of Categories for Query. SystemPrompt,
// when set, is prepended as guidance; the adapter is responsible for mapping
// it onto whatever "system" concept its provider exposes.
type Request struct {
	SystemPrompt string
	Query        string
	Categories   []string
}

// Response is a Client's classification. RawText carries the provider's
// unparsed completion for logging/debugging; Category is always one of the
// Request's Categories (or empty, if the model picked none of them).
type Response struct {
	Category string
	RawText  string
}

// Client classifies a free-text query into one of a closed set of
// categories. Implementations must never invent a category outside the
// request's Categories list.
type Client interface {
	Classify(ctx context.Context, req Request) (Response, error)
}

// ErrNoCategories is returned by adapters when Request.Categories is empty.
var ErrNoCategories = errors.New("llm: request must list at least one category")

// ErrEmptyQuery is returned by adapters when Request.Query is the empty
// string; a whitespace-only query is passed through.
var ErrEmptyQuery = errors.New("llm: request query must not be empty")

// MatchCategory finds the first entry of categories that appears in text,
// case-insensitively, preferring the earliest match in text rather than the
// earliest category, so "this looks like a cost issue, not health" resolves
// to cost. Returns "" if none match.
func MatchCategory(text string, categories []string) string {
	lower := strings.ToLower(text)
	bestIdx := -1
	best := ""
	for _, c := range categories {
		idx := strings.Index(lower, strings.ToLower(c))
		if idx < 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx {
			bestIdx = idx
			best = c
		}
	}
	return best
}

func validate(req Request) error {
	if len(req.Categories) == 0 {
		return ErrNoCategories
	}
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// BuildPrompt renders the standard closed-set classification prompt shared
// by every adapter, so the wording a model sees is identical regardless of
// provider.
func BuildPrompt(req Request) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("Classify the following operator request into exactly one of these categories: ")
	b.WriteString(strings.Join(req.Categories, ", "))
	b.WriteString(".\nRespond with the category name only, nothing else.\n\nRequest: ")
	b.WriteString(req.Query)
	return b.String()
}
