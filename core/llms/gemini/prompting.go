// Package gemini implements the generation provider for the Google
// generative language API.
package gemini

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

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Client is a generateContent client.
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

// Generate sends one user prompt and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, model string, prompt string, opts ...llms.GenerateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", model))

	options := llms.GenerateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	reqBody := requestBody{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: options.MaxTokens,
			Temperature:     options.Temperature,
		},
	}
	if options.Instructions != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: options.Instructions}}}
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error marshalling request", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", llms.NewError(llms.ErrorUnknown, "error creating HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
	if len(responseBody.Candidates) == 0 || len(responseBody.Candidates[0].Content.Parts) == 0 {
		return "", llms.NewError(llms.ErrorUnknown, "response contained no candidates", nil)
	}

	var text strings.Builder
	for _, part := range responseBody.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return strings.TrimSpace(text.String()), nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type requestBody struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type responseBodyJSON struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason *string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
