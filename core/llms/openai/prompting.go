// Package openai implements the generation provider for OpenAI-compatible
// chat-completions APIs. One client serves every aggregator that speaks the
// same wire protocol (oneapi, deepseek, siliconflow, volcengine, ...); only
// the base URL and key differ.
package openai

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

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	messageRoleSystem = "system"
	messageRoleUser   = "user"
)

// Client is a chat-completions client for one configured endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New constructs a client. A missing API key is a configuration failure and
// is reported immediately rather than on first call.
func New(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, llms.NewError(llms.ErrorAuthFailure, "API key not set", nil)
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

// Generate sends one user prompt and returns the full response text.
func (c *Client) Generate(ctx context.Context, model string, prompt string, opts ...llms.GenerateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", model))

	options := llms.GenerateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := []message{}
	if options.Instructions != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: options.Instructions})
	}
	messages = append(messages, message{Role: messageRoleUser, Content: prompt})

	reqBody := requestBody{
		Model:       model,
		Messages:    messages,
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error marshalling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error creating HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", llms.NewError(llms.ErrorTimeout, "request deadline exceeded", err)
		}
		return "", llms.NewError(llms.ErrorUnknown, "error sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp)
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error reading response body", err)
	}

	var responseBody responseBodyJSON
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error unmarshalling response", err)
	}
	if len(responseBody.Choices) == 0 {
		return "", llms.NewError(llms.ErrorUnknown, "response contained no choices", nil)
	}

	return strings.TrimSpace(responseBody.Choices[0].Message.Content), nil
}

// classifyStatus maps a non-OK HTTP response to the normalized error
// contract, keeping a snippet of the body as detail.
func classifyStatus(resp *http.Response) *llms.ClassifiedError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := fmt.Sprintf("non-OK HTTP status %s: %s", resp.Status, strings.TrimSpace(string(body)))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llms.NewError(llms.ErrorAuthFailure, detail, nil)
	case http.StatusNotFound:
		return llms.NewError(llms.ErrorModelUnavailable, detail, nil)
	case http.StatusTooManyRequests:
		return llms.NewError(llms.ErrorRateLimited, detail, nil)
	case http.StatusServiceUnavailable:
		return llms.NewError(llms.ErrorModelUnavailable, detail, nil)
	default:
		return llms.NewError(llms.ErrorUnknown, detail, nil)
	}
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type responseBodyJSON struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
