package roundtable

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Intervention actions.
const (
	ActionInterrupt = "interrupt"
	ActionQuestion  = "question"
)

// Intervene splices an out-of-band user action into an open phase's journal.
//
// An interrupt appends a single user turn and touches nothing else. A
// question requires a target participant and text: the question is recorded
// as a user turn, the target answers it directly (bypassing normal round
// context), a bounded set of other participants may react, and the moderator
// wraps the exchange up.
//
// Every precondition failure (unknown action, missing question arguments,
// unknown discussion or target) is rejected before any journal mutation.
func (e *Engine) Intervene(ctx context.Context, discussionID string, phaseIndex int, action, targetID, text string) (*journal.Journal, error) {
	ctx, span := tracer.Start(ctx, "intervene")
	defer span.End()
	span.SetAttributes(
		attribute.String("discussion.id", discussionID),
		attribute.String("intervention.action", action),
	)

	if action != ActionInterrupt && action != ActionQuestion {
		span.SetStatus(codes.Error, "unknown action")
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if action == ActionQuestion {
		if targetID == "" {
			return nil, ErrMissingQuestionTarget
		}
		if text == "" {
			return nil, ErrMissingQuestionText
		}
	}

	pc, err := e.resolvePhase(discussionID, phaseIndex)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if action == ActionInterrupt {
		message := text
		if message == "" {
			message = "The discussion was interrupted by the audience."
		}
		e.appendTurn(pc, journal.NewTurn(journal.SpeakerUser, message))
		return pc.journal, nil
	}

	target := e.participant(pc, targetID)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, targetID)
	}

	e.appendTurn(pc, journal.NewTurn(journal.SpeakerUser, fmt.Sprintf("Question to %s: %s", target.Name, text)))
	e.speak(ctx, pc, *target, answerPrompt(target.Name, text))

	answer := pc.journal.Last(journal.SpeakerUser)
	answerText := ""
	if answer != nil {
		answerText = answer.Text
	}

	beforeReactions := pc.journal.Len()
	for _, reactor := range e.reactionRound(pc, target.ID) {
		e.speak(ctx, pc, reactor, reactionPrompt(reactor.Name, target.Name, answerText))
	}

	if pc.moderator != nil {
		exchange := []string{fmt.Sprintf("%s: %s", target.Name, answerText)}
		turns := pc.journal.Turns()
		for _, turn := range turns[min(beforeReactions, len(turns)):] {
			exchange = append(exchange, fmt.Sprintf("%s: %s", e.displayName(pc, turn.Speaker), turn.Text))
		}
		e.speak(ctx, pc, *pc.moderator, questionSynthesisPrompt(pc.moderator.Name, target.Name, text, strings.Join(exchange, "\n")))
	}

	return pc.journal, nil
}

// reactionRound picks the participants who react to a question's answer:
// everyone except the answerer and the moderator, shuffled and capped by the
// configured per-round maximum.
func (e *Engine) reactionRound(pc *phaseContext, answererID string) []directory.Agent {
	others := []directory.Agent{}
	for _, participant := range pc.participants {
		if participant.ID == answererID {
			continue
		}
		if pc.moderator != nil && participant.ID == pc.moderator.ID {
			continue
		}
		others = append(others, participant)
	}

	rand.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	if len(others) > e.maxAgentsPerRound {
		others = others[:e.maxAgentsPerRound]
	}
	return others
}

func (e *Engine) participant(pc *phaseContext, id string) *directory.Agent {
	for _, participant := range pc.participants {
		if participant.ID == id {
			p := participant
			return &p
		}
	}
	return nil
}
