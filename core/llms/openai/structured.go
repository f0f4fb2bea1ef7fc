package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

// PromptJSONSchema asks the model for a response conforming to the JSON
// schema reflected from outputSchema and unmarshals it back into that type.
func PromptJSONSchema[T any](
	ctx context.Context,
	client *Client,
	model string,
	prompt string,
	systemPrompt string,
	outputSchema T,
) (*T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	messages := []message{}
	if systemPrompt != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, message{Role: messageRoleUser, Content: prompt})

	reflector := jsonschema.Reflector{DoNotReference: true}
	var (
		schema         *jsonschema.Schema
		outputTypeName string
	)
	if reflect.TypeOf(outputSchema).Kind() == reflect.Ptr {
		schema = reflector.ReflectFromType(reflect.TypeOf(outputSchema).Elem())
		outputTypeName = reflect.TypeOf(outputSchema).Elem().Name()
	} else {
		schema = reflector.Reflect(outputSchema)
		outputTypeName = reflect.TypeOf(outputSchema).Name()
	}

	reqBody := schemaRequestBody{
		Model:    model,
		Messages: messages,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   outputTypeName,
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llms.NewError(llms.ErrorUnknown, "error marshalling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", client.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, llms.NewError(llms.ErrorUnknown, "error creating HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.apiKey)

	resp, err := client.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, llms.NewError(llms.ErrorTimeout, "request deadline exceeded", err)
		}
		return nil, llms.NewError(llms.ErrorUnknown, "error sending request", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llms.NewError(llms.ErrorUnknown, "error reading response body", err)
	}
	var responseBody responseBodyJSON
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		return nil, llms.NewError(llms.ErrorUnknown, "error unmarshalling response", err)
	}
	if len(responseBody.Choices) == 0 {
		return nil, llms.NewError(llms.ErrorUnknown, "response contained no choices", nil)
	}

	// Some aggregators wrap the JSON payload in a markdown fence.
	content := responseBody.Choices[0].Message.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}
	if err := json.Unmarshal([]byte(content), &outputSchema); err != nil {
		return nil, llms.NewError(llms.ErrorUnknown, "error unmarshalling structured content", err)
	}

	return &outputSchema, nil
}

type schemaRequestBody struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	// Name further identifies the schema in the response.
	Name string `json:"name"`
	// Schema is the reflected schema the model must satisfy.
	Schema jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the generated
	// content.
	Strict bool `json:"strict"`
}
