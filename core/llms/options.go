package llms

import "context"

// Provider is the capability interface every generation backend implements.
// Generate returns the full response text or a *ClassifiedError; it must not
// panic past its boundary.
type Provider interface {
	Generate(ctx context.Context, model string, prompt string, opts ...GenerateOption) (string, error)
}

// GenerateOptions carries the per-call generation parameters.
type GenerateOptions struct {
	Instructions string
	MaxTokens    int
	Temperature  *float64
}

// GenerateOption is a function that can be used to modify the generation
// options.
type GenerateOption func(*GenerateOptions)

// WithSystemPrompt sets the system prompt for the call. Repeating this
// option overwrites the previous system prompt.
func WithSystemPrompt(prompt string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Instructions = prompt
	}
}

// WithMaxTokens caps the response length in tokens.
func WithMaxTokens(maxTokens int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = &temperature
	}
}
