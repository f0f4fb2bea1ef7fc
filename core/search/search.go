// Package search fetches background context for discussion topics from web
// search engines. Search is strictly best-effort; callers substitute a plain
// placeholder when nothing could be fetched.
package search

import (
	"context"
	"strings"
)

// maxSnippets caps how much fetched material is stuffed into a prompt.
const maxSnippets = 5

// Fetcher returns background material for a topic. skillHints bias the query
// toward the participants' domains.
type Fetcher interface {
	FetchContext(ctx context.Context, topic string, skillHints []string) (string, error)
}

// Multi tries each engine in order and returns the first non-empty result.
type Multi struct {
	engines []Fetcher
}

func NewMulti(engines ...Fetcher) *Multi {
	return &Multi{engines: engines}
}

func (m *Multi) FetchContext(ctx context.Context, topic string, skillHints []string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch context")
	defer span.End()

	var lastErr error
	for _, engine := range m.engines {
		text, err := engine.FetchContext(ctx, topic, skillHints)
		if err != nil {
			logger.Warn("search engine failed, trying next", "topic", topic, "error", err)
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", lastErr
}

func buildQuery(topic string, skillHints []string) string {
	if len(skillHints) == 0 {
		return topic
	}
	return topic + " " + strings.Join(skillHints, " ")
}

func joinSnippets(snippets []string) string {
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	return strings.Join(snippets, "\n\n")
}
