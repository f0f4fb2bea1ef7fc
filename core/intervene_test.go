package roundtable

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
)

func TestInterruptAppendsSingleUserTurn(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2", "P3")

	j, err := engine.Intervene(context.Background(), "D1", 0, ActionInterrupt, "", "hold on a second")
	if err != nil {
		t.Fatalf("expected interrupt to succeed, got %v", err)
	}

	if j.Len() != 1 {
		t.Fatalf("expected exactly one turn, got %d", j.Len())
	}
	turn := j.Turns()[0]
	if turn.Speaker != journal.SpeakerUser {
		t.Fatalf("expected a user turn, got %s", turn.Speaker)
	}
	if turn.Text != "hold on a second" {
		t.Fatalf("unexpected interruption text: %q", turn.Text)
	}
}

func TestQuestionRunsAnswerReactionsAndSynthesis(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2", "P3")

	moderator, remainder := SelectModerator("D1", agents("P1", "P2", "P3"))
	target := remainder[0]

	j, err := engine.Intervene(context.Background(), "D1", 0, ActionQuestion, target.ID, "What about the costs?")
	if err != nil {
		t.Fatalf("expected question to succeed, got %v", err)
	}

	turns := j.Turns()
	// User question, target answer, one reaction (the other non-moderator),
	// moderator synthesis.
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}

	if turns[0].Speaker != journal.SpeakerUser {
		t.Fatalf("expected user question first, got %s", turns[0].Speaker)
	}
	if !strings.Contains(turns[0].Text, target.Name) || !strings.Contains(turns[0].Text, "What about the costs?") {
		t.Fatalf("question turn should carry target name and text, got %q", turns[0].Text)
	}
	if turns[1].Speaker != target.ID {
		t.Fatalf("expected answer from %s, got %s", target.ID, turns[1].Speaker)
	}
	if turns[2].Speaker == target.ID || turns[2].Speaker == moderator.ID {
		t.Fatalf("reaction should come from another participant, got %s", turns[2].Speaker)
	}
	if turns[3].Speaker != moderator.ID {
		t.Fatalf("expected moderator synthesis last, got %s", turns[3].Speaker)
	}
}

func TestReactionRoundIsBounded(t *testing.T) {
	gen := &scriptedGenerator{}
	broadcaster := &recordingBroadcaster{}
	ids := []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7"}
	engine := NewEngine(
		WithDirectory(&fakeDirectory{agents: testAgents(ids...)}),
		WithRegistry(&fakeRegistry{conferences: map[string]*registry.Conference{
			"D1": testConference("D1", ids...),
		}}),
		WithGenerator(gen),
		WithJournalStore(journal.NewStore(t.TempDir())),
		WithBroadcaster(broadcaster),
		WithMaxAgentsPerRound(2),
	)

	_, remainder := SelectModerator("D1", agents(ids...))
	target := remainder[0]

	j, err := engine.Intervene(context.Background(), "D1", 0, ActionQuestion, target.ID, "Thoughts?")
	if err != nil {
		t.Fatalf("expected question to succeed, got %v", err)
	}

	// User question + answer + at most 2 reactions + synthesis.
	if j.Len() != 5 {
		t.Fatalf("expected 5 turns with a reaction cap of 2, got %d", j.Len())
	}
}

func TestQuestionWithoutTargetIsRejected(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2", "P3")

	_, err := engine.Intervene(context.Background(), "D1", 0, ActionQuestion, "", "Q?")
	if !errors.Is(err, ErrMissingQuestionTarget) {
		t.Fatalf("expected ErrMissingQuestionTarget, got %v", err)
	}

	_, err = engine.Intervene(context.Background(), "D1", 0, ActionQuestion, "P2", "")
	if !errors.Is(err, ErrMissingQuestionText) {
		t.Fatalf("expected ErrMissingQuestionText, got %v", err)
	}

	// No journal mutation happened.
	j, err := engine.Intervene(context.Background(), "D1", 0, ActionInterrupt, "", "check")
	if err != nil {
		t.Fatalf("expected interrupt to succeed, got %v", err)
	}
	if j.Len() != 1 {
		t.Fatalf("expected rejected questions to leave no turns, got %d turns", j.Len())
	}
}

func TestUnknownActionIsRejected(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2")

	_, err := engine.Intervene(context.Background(), "D1", 0, "dance", "", "")
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestQuestionToUnknownParticipantIsRejected(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2")

	_, err := engine.Intervene(context.Background(), "D1", 0, ActionQuestion, "ghost", "Q?")
	if !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}
