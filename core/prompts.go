package roundtable

import (
	"fmt"
	"strings"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
)

const noBackgroundNotice = "No additional background material is available; rely on your own knowledge."

// personaInstructions renders a participant's profile into the system prompt
// every one of their turns is generated under.
func personaInstructions(agent directory.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a participant in a round-table discussion. Speak in the first person and stay in character.\n", agent.Name)
	if agent.Background.Education != "" {
		fmt.Fprintf(&b, "Background: %s.\n", agent.Background.Education)
	}
	if len(agent.Background.Skills) > 0 {
		fmt.Fprintf(&b, "Your areas of expertise: %s.\n", strings.Join(agent.Background.Skills, ", "))
	}
	if agent.Personality.Mood != "" || agent.Personality.Thinking != "" {
		fmt.Fprintf(&b, "Disposition: %s; thinking style: %s.\n", agent.Personality.Mood, agent.Personality.Thinking)
	}
	if agent.Communication.Style != "" || agent.Communication.Tone != "" {
		fmt.Fprintf(&b, "Communicate in a %s style with a %s tone.\n", agent.Communication.Style, agent.Communication.Tone)
	}
	b.WriteString("Keep your contribution focused and conversational; do not narrate stage directions.")
	return b.String()
}

func openingPrompt(moderatorName, topic string, phase registry.Phase, background string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As %s, you are moderating the discussion phase %q on the topic: %s.\n", moderatorName, phase.Name, topic)
	if phase.Instructions != "" {
		fmt.Fprintf(&b, "Phase guidance: %s\n", phase.Instructions)
	}
	fmt.Fprintf(&b, "Background material:\n%s\n", background)
	b.WriteString("Open the discussion: frame the topic, say why it matters, and invite the participants to weigh in.")
	return b.String()
}

func turnPrompt(speakerName, topic, previous string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The round table is discussing: %s.\n", topic)
	if previous != "" {
		fmt.Fprintf(&b, "The previous speaker %s\n", previous)
	}
	fmt.Fprintf(&b, "As %s, give your view. Engage with what was just said where it helps, and add a concrete point of your own.", speakerName)
	return b.String()
}

func synthesisPrompt(moderatorName, topic, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As %s, you are closing this phase of the discussion on: %s.\n", moderatorName, topic)
	fmt.Fprintf(&b, "The participants said:\n%s\n", transcript)
	b.WriteString("Synthesize the discussion: name the main points of agreement and disagreement and state the takeaways.")
	return b.String()
}

func answerPrompt(targetName, question string) string {
	return fmt.Sprintf(
		"A member of the audience has a question for you, %s: %s\nAnswer it directly and concretely.",
		targetName, question,
	)
}

func reactionPrompt(speakerName, targetName, answer string) string {
	return fmt.Sprintf(
		"%s just answered an audience question as follows:\n%s\nAs %s, react briefly: agree, disagree or extend the answer.",
		targetName, answer, speakerName,
	)
}

func questionSynthesisPrompt(moderatorName, targetName, question, discussion string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As %s, wrap up the audience question put to %s: %s\n", moderatorName, targetName, question)
	fmt.Fprintf(&b, "The exchange so far:\n%s\n", discussion)
	b.WriteString("Summarize the answer and any reactions in a couple of sentences, then hand back to the audience.")
	return b.String()
}

func questionsOpenText(moderator *directory.Agent) string {
	if moderator == nil {
		return "The floor is now open for audience questions."
	}
	return fmt.Sprintf("The floor is now open for audience questions; %s will field them.", moderator.Name)
}
