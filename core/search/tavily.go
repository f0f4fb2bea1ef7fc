package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily queries the Tavily search API.
type Tavily struct {
	apiKey string
	http   *http.Client
}

func NewTavily(apiKey string) *Tavily {
	return &Tavily{
		apiKey: apiKey,
		http:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (t *Tavily) FetchContext(ctx context.Context, topic string, skillHints []string) (string, error) {
	ctx, span := tracer.Start(ctx, "tavily search")
	defer span.End()
	span.SetAttributes(attribute.String("search.topic", topic))

	if t.apiKey == "" {
		return "", fmt.Errorf("tavily API key not set")
	}

	reqBody, err := json.Marshal(map[string]any{
		"api_key":     t.apiKey,
		"query":       buildQuery(topic, skillHints),
		"max_results": maxSnippets,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tavilyURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tavily returned status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tavily response: %w", err)
	}

	var parsed struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode tavily response: %w", err)
	}

	snippets := []string{}
	if parsed.Answer != "" {
		snippets = append(snippets, parsed.Answer)
	}
	for _, result := range parsed.Results {
		if result.Content == "" {
			continue
		}
		snippets = append(snippets, fmt.Sprintf("%s: %s", result.Title, result.Content))
	}
	return joinSnippets(snippets), nil
}
