package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// SearXNG queries a self-hosted SearXNG instance's JSON API.
type SearXNG struct {
	host       string
	engines    string
	safeSearch int
	http       *http.Client
}

// NewSearXNG constructs a fetcher against host (e.g. "http://localhost:8080").
// engines is a comma-separated engine list; empty uses the instance default.
func NewSearXNG(host, engines string, safeSearch int) *SearXNG {
	return &SearXNG{
		host:       strings.TrimSuffix(host, "/"),
		engines:    engines,
		safeSearch: safeSearch,
		http:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (s *SearXNG) FetchContext(ctx context.Context, topic string, skillHints []string) (string, error) {
	ctx, span := tracer.Start(ctx, "searxng search")
	defer span.End()
	span.SetAttributes(attribute.String("search.topic", topic))

	query := url.Values{}
	query.Set("q", buildQuery(topic, skillHints))
	query.Set("format", "json")
	query.Set("safesearch", fmt.Sprint(s.safeSearch))
	if s.engines != "" {
		query.Set("engines", s.engines)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.host+"/search?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach searxng: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("searxng returned status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read searxng response: %w", err)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode searxng response: %w", err)
	}

	snippets := []string{}
	for _, result := range parsed.Results {
		if result.Content == "" {
			continue
		}
		snippets = append(snippets, fmt.Sprintf("%s: %s", result.Title, result.Content))
	}
	return joinSnippets(snippets), nil
}
