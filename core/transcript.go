package roundtable

import (
	"regexp"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
)

// SubstituteNames replaces raw participant-id tokens in generated text with
// the participant's display name, on exact word-boundary matches only, so
// transcripts read naturally even when a model echoes internal ids.
func SubstituteNames(text string, participants []directory.Agent) string {
	for _, participant := range participants {
		if participant.ID == "" || participant.ID == participant.Name {
			continue
		}
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(participant.ID) + `\b`)
		if err != nil {
			continue
		}
		text = pattern.ReplaceAllString(text, participant.Name)
	}
	return text
}
