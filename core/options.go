package roundtable

import (
	"context"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/broadcast"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
)

type EngineOption func(*Engine)

// Directory is the read side of the agent directory.
type Directory interface {
	Get(id string) (*directory.Agent, error)
}

func WithDirectory(d Directory) EngineOption {
	return func(e *Engine) { e.directory = d }
}

// Registry is the read side of the conference registry. The engine never
// advances lifecycle state through it.
type Registry interface {
	Get(id string) (*registry.Conference, error)
}

func WithRegistry(r Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// Generator produces speech text. It is expected to absorb provider failures
// itself and always return something usable.
type Generator interface {
	GenerateWithRetry(ctx context.Context, req llms.Request) string
}

func WithGenerator(g Generator) EngineOption {
	return func(e *Engine) { e.generator = g }
}

// ContextFetcher supplies background material for a topic. Strictly
// best-effort; the engine substitutes a plain notice when it fails.
type ContextFetcher interface {
	FetchContext(ctx context.Context, topic string, skillHints []string) (string, error)
}

func WithContextFetcher(f ContextFetcher) EngineOption {
	return func(e *Engine) { e.fetcher = f }
}

// Broadcaster receives every appended turn for push delivery to live
// listeners. Delivery is best-effort.
type Broadcaster interface {
	Publish(discussionID string, msg broadcast.TurnMessage)
}

func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *Engine) { e.broadcaster = b }
}

func WithJournalStore(s *journal.Store) EngineOption {
	return func(e *Engine) { e.journals = s }
}

// WithRounds sets how many speaking rounds each phase runs.
func WithRounds(rounds int) EngineOption {
	return func(e *Engine) {
		if rounds > 0 {
			e.rounds = rounds
		}
	}
}

// WithMaxAgentsPerRound bounds the reaction round after a user question.
func WithMaxAgentsPerRound(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAgentsPerRound = n
		}
	}
}

// WithGenerationDefaults sets the token and temperature parameters passed to
// every generation request.
func WithGenerationDefaults(maxTokens int, temperature float64) EngineOption {
	return func(e *Engine) {
		e.maxTokens = maxTokens
		e.temperature = temperature
	}
}

// WithModelResolver sets the participant-id → model-string mapping.
func WithModelResolver(resolve func(agentID string) string) EngineOption {
	return func(e *Engine) {
		if resolve != nil {
			e.modelFor = resolve
		}
	}
}
