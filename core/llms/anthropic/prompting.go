// Package anthropic implements the generation provider for the Anthropic
// messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	url        = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"

	defaultMaxTokens = 4096
)

// Client is a messages-API client.
type Client struct {
	apiKey string
	http   *http.Client
}

// New constructs a client; a missing API key fails immediately.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, llms.NewError(llms.ErrorAuthFailure, "API key not set", nil)
	}

	return &Client{
		apiKey: apiKey,
		http:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

// Generate sends one user prompt and returns the concatenated text blocks of
// the response.
func (c *Client) Generate(ctx context.Context, model string, prompt string, opts ...llms.GenerateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", model))

	options := llms.GenerateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	// The messages API requires max_tokens.
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := requestBody{
		Model:       model,
		System:      options.Instructions,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: options.Temperature,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error marshalling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error creating HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", llms.NewError(llms.ErrorTimeout, "request deadline exceeded", err)
		}
		return "", llms.NewError(llms.ErrorUnknown, "error sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := fmt.Sprintf("non-OK HTTP status %s: %s", resp.Status, strings.TrimSpace(string(body)))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "", llms.NewError(llms.ErrorAuthFailure, detail, nil)
		case http.StatusNotFound:
			return "", llms.NewError(llms.ErrorModelUnavailable, detail, nil)
		case http.StatusTooManyRequests:
			return "", llms.NewError(llms.ErrorRateLimited, detail, nil)
		case 529: // anthropic "overloaded"
			return "", llms.NewError(llms.ErrorModelUnavailable, detail, nil)
		default:
			return "", llms.NewError(llms.ErrorUnknown, detail, nil)
		}
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error reading response body", err)
	}

	var responseBody responseBodyJSON
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error unmarshalling response", err)
	}
	if len(responseBody.Content) == 0 {
		return "", llms.NewError(llms.ErrorUnknown, "response contained no content blocks", nil)
	}

	var text strings.Builder
	for _, block := range responseBody.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type responseBodyJSON struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason *string `json:"stop_reason,omitempty"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
