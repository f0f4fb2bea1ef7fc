package registry

import (
	"context"
	"fmt"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms/openai"
)

type suggestedAgenda struct {
	Phases []struct {
		Name         string   `json:"name" jsonschema_description:"Short name of the discussion phase"`
		Topics       []string `json:"topics" jsonschema_description:"Concrete topics to cover in this phase"`
		Instructions string   `json:"instructions" jsonschema_description:"Guidance for the moderator running this phase"`
	} `json:"phases" jsonschema_description:"Ordered discussion phases"`
}

const agendaSystemPrompt = "You design agendas for structured round-table discussions. " +
	"Produce three to five phases that move from framing the problem through debate to concrete conclusions."

// SuggestAgenda asks the model to draft a phased agenda for the given topic.
func SuggestAgenda(ctx context.Context, client *openai.Client, model string, topic string) ([]Phase, error) {
	ctx, span := tracer.Start(ctx, "suggest agenda")
	defer span.End()

	prompt := fmt.Sprintf("Draft a discussion agenda for a round table on the following topic: %s", topic)

	suggestion, err := openai.PromptJSONSchema(ctx, client, model, prompt, agendaSystemPrompt, suggestedAgenda{})
	if err != nil {
		return nil, fmt.Errorf("failed to suggest agenda: %w", err)
	}

	phases := make([]Phase, 0, len(suggestion.Phases))
	for _, p := range suggestion.Phases {
		phases = append(phases, Phase{Name: p.Name, Topics: p.Topics, Instructions: p.Instructions})
	}
	return phases, nil
}
