package llms

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Request describes one generation call routed through the retry ladder.
// SpeakerName and Topic feed the templated fallback when every attempt
// fails.
type Request struct {
	// Model is a "provider:model" string; the provider prefix is optional.
	Model        string
	Prompt       string
	Instructions string
	MaxTokens    int
	Temperature  float64

	SpeakerName string
	Topic       string
}

// Client wraps a provider registry with the retry / backup-model / fallback
// discipline. Generation through a Client never fails and never returns an
// empty string.
type Client struct {
	registry *Registry

	maxRetries     int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	// backupModel is tried exactly once after the primary model's retry
	// budget is spent. Empty means no backup is configured.
	backupModel string

	sleep func(time.Duration)
}

// ClientOption is a function that can be used to modify the client.
type ClientOption func(*Client)

func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
	}
}

func WithRetryBaseDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		if delay > 0 {
			c.baseDelay = delay
		}
	}
}

func WithAttemptTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.attemptTimeout = timeout
		}
	}
}

func WithBackupModel(model string) ClientOption {
	return func(c *Client) {
		c.backupModel = model
	}
}

// NewClient creates a retrying client over the passed registry.
func NewClient(registry *Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:       registry,
		maxRetries:     3,
		baseDelay:      time.Second,
		attemptTimeout: time.Minute,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateWithRetry runs the full ladder: retry the primary model with
// exponential backoff, switch once to the backup model, and finally fall
// back to a deterministic templated response.
func (c *Client) GenerateWithRetry(ctx context.Context, req Request) string {
	ctx, span := tracer.Start(ctx, "generate with retry")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", req.Model))

	delay := c.baseDelay
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		text, err := c.attempt(ctx, req.Model, req)
		if err == nil && text != "" {
			return text
		}

		logger.Warn("generation attempt failed",
			"model", req.Model,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"kind", string(KindOf(err)),
			"error", err,
		)
		if attempt < c.maxRetries {
			c.sleep(delay)
			delay *= 2
		}
	}

	if c.backupModel != "" && c.backupModel != req.Model {
		span.AddEvent("switching to backup model")
		text, err := c.attempt(ctx, c.backupModel, req)
		if err == nil && text != "" {
			return text
		}
		logger.Warn("backup model failed", "model", c.backupModel, "error", err)
	}

	span.SetStatus(codes.Error, "all generation attempts failed")
	fallback := FallbackText(req.SpeakerName, req.Model, req.Topic)
	logger.Info("using fallback response", "model", req.Model, "speaker", req.SpeakerName)
	return fallback
}

func (c *Client) attempt(ctx context.Context, model string, req Request) (string, error) {
	providerName, modelName := c.registry.ParseModel(model)
	provider, err := c.registry.Resolve(providerName)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	opts := []GenerateOption{
		WithMaxTokens(req.MaxTokens),
		WithTemperature(req.Temperature),
	}
	if req.Instructions != "" {
		opts = append(opts, WithSystemPrompt(req.Instructions))
	}

	text, err := provider.Generate(ctx, modelName, req.Prompt, opts...)
	if err != nil {
		if ctx.Err() != nil && KindOf(err) == ErrorUnknown {
			return "", NewError(ErrorTimeout, "attempt deadline exceeded", err)
		}
		return "", err
	}
	return text, nil
}

// FallbackText is the deterministic templated response used when every
// provider attempt has failed. It always names the speaker and the topic so
// the transcript stays readable.
func FallbackText(speakerName, model, topic string) string {
	return fmt.Sprintf(
		"%s: Due to a technical issue I could not obtain a full response from the %s model. I still believe %s is an important topic that deserves analysis from several angles, along with concrete and actionable proposals.",
		speakerName, model, topic,
	)
}
