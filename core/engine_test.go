package roundtable

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"
	"time"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/broadcast"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
)

type fakeDirectory struct {
	agents map[string]directory.Agent
}

func (f *fakeDirectory) Get(id string) (*directory.Agent, error) {
	if agent, ok := f.agents[id]; ok {
		return &agent, nil
	}
	return nil, nil
}

type fakeRegistry struct {
	conferences map[string]*registry.Conference
}

func (f *fakeRegistry) Get(id string) (*registry.Conference, error) {
	if conference, ok := f.conferences[id]; ok {
		clone := *conference
		return &clone, nil
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrConferenceNotFound, id)
}

// scriptedGenerator returns text that is a pure function of the request, so
// replaying the same discussion produces identical turns. Names listed in
// panicOn panic instead of returning.
type scriptedGenerator struct {
	panicOn map[string]bool
	calls   int
}

func (g *scriptedGenerator) GenerateWithRetry(_ context.Context, req llms.Request) string {
	g.calls++
	if g.panicOn[req.SpeakerName] {
		panic("scripted generation failure")
	}
	h := fnv.New32a()
	h.Write([]byte(req.Prompt))
	return fmt.Sprintf("%s speaking on %s [%x]", req.SpeakerName, req.Topic, h.Sum32())
}

type recordingBroadcaster struct {
	messages []broadcast.TurnMessage
}

func (b *recordingBroadcaster) Publish(_ string, msg broadcast.TurnMessage) {
	b.messages = append(b.messages, msg)
}

func testAgents(ids ...string) map[string]directory.Agent {
	agents := map[string]directory.Agent{}
	for _, id := range ids {
		agents[id] = directory.Agent{
			ID:   id,
			Name: "Speaker " + id,
			Background: directory.Background{
				Skills: []string{"debate"},
			},
		}
	}
	return agents
}

func testConference(id string, participantIDs ...string) *registry.Conference {
	return &registry.Conference{
		ID:             id,
		Title:          "Test Conference",
		Agenda:         []registry.Phase{{Name: "Framing", Topics: []string{"test topic"}}},
		ParticipantIDs: participantIDs,
	}
}

func newTestEngine(t *testing.T, gen Generator, participantIDs ...string) (*Engine, *recordingBroadcaster) {
	t.Helper()

	broadcaster := &recordingBroadcaster{}
	engine := NewEngine(
		WithDirectory(&fakeDirectory{agents: testAgents(participantIDs...)}),
		WithRegistry(&fakeRegistry{conferences: map[string]*registry.Conference{
			"D1": testConference("D1", participantIDs...),
		}}),
		WithGenerator(gen),
		WithJournalStore(journal.NewStore(t.TempDir())),
		WithBroadcaster(broadcaster),
		WithRounds(1),
		WithMaxAgentsPerRound(3),
	)
	return engine, broadcaster
}

func TestPhaseDiscussionTurnSequence(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2", "P3")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("expected discussion to run, got %v", err)
	}

	turns := j.Turns()
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns (opening, 2 speakers, closing, announcement), got %d", len(turns))
	}

	moderator, remainder := SelectModerator("D1", agentsOf(t, engine, "P1", "P2", "P3"))
	if turns[0].Speaker != moderator.ID {
		t.Fatalf("expected opening from moderator %s, got %s", moderator.ID, turns[0].Speaker)
	}
	if turns[3].Speaker != moderator.ID {
		t.Fatalf("expected closing from moderator %s, got %s", moderator.ID, turns[3].Speaker)
	}
	if turns[4].Speaker != journal.SpeakerSystem {
		t.Fatalf("expected final system turn, got %s", turns[4].Speaker)
	}

	spoke := map[string]int{}
	for _, turn := range turns[1:3] {
		spoke[turn.Speaker]++
	}
	for _, participant := range remainder {
		if spoke[participant.ID] != 1 {
			t.Fatalf("expected %s to speak exactly once in round 1, spoke %d times", participant.ID, spoke[participant.ID])
		}
	}
}

func TestRoundOneCompleteness(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2", "P3", "P4", "P5")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("expected discussion to run, got %v", err)
	}

	turns := j.Turns()
	seen := map[string]bool{}
	for _, turn := range turns[1:] {
		if turn.Speaker == journal.SpeakerSystem {
			break
		}
		if seen[turn.Speaker] {
			t.Fatalf("%s spoke twice before everyone spoke once", turn.Speaker)
		}
		seen[turn.Speaker] = true
		if len(seen) == 4 {
			break
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected all 4 non-moderator participants to speak, got %d", len(seen))
	}
}

func TestResumeSkipsOpening(t *testing.T) {
	gen := &scriptedGenerator{}
	engine, _ := newTestEngine(t, gen, "P1", "P2", "P3")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstLen := j.Len()
	callsAfterFirst := gen.calls

	j, err = engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if j.Len() != firstLen {
		t.Fatalf("expected resume to be idempotent, turn count went %d -> %d", firstLen, j.Len())
	}
	// The completed phase is recognized from the journal; nothing is
	// regenerated, in particular not the opening.
	if gen.calls != callsAfterFirst {
		t.Fatalf("expected no generation calls on resume, got %d", gen.calls-callsAfterFirst)
	}
}

func TestSpeakerPanicDoesNotAbortRound(t *testing.T) {
	moderator, _ := SelectModerator("D1", agents("P1", "P2", "P3"))

	panicky := ""
	for _, id := range []string{"P1", "P2", "P3"} {
		if id != moderator.ID {
			panicky = id
			break
		}
	}

	gen := &scriptedGenerator{panicOn: map[string]bool{"Speaker " + panicky: true}}
	engine, _ := newTestEngine(t, gen, "P1", "P2", "P3")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("expected discussion to survive a speaker panic, got %v", err)
	}

	for _, turn := range j.Turns() {
		if turn.Speaker == panicky {
			t.Fatalf("expected no turn from panicking speaker %s", panicky)
		}
	}
	// Opening, one surviving speaker, closing, announcement.
	if j.Len() != 4 {
		t.Fatalf("expected 4 turns after one contained panic, got %d", j.Len())
	}
}

func TestPreconditionsRejectedBeforeMutation(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1", "P2")

	if _, err := engine.StartPhaseDiscussion(context.Background(), "missing", 0); err == nil {
		t.Fatalf("expected unknown discussion to be rejected")
	}
	if _, err := engine.StartPhaseDiscussion(context.Background(), "D1", 7); err == nil {
		t.Fatalf("expected out-of-range phase to be rejected")
	}
}

func TestUnknownParticipantRejected(t *testing.T) {
	engine := NewEngine(
		WithDirectory(&fakeDirectory{agents: testAgents("P1")}),
		WithRegistry(&fakeRegistry{conferences: map[string]*registry.Conference{
			"D1": testConference("D1", "P1", "ghost"),
		}}),
		WithGenerator(&scriptedGenerator{}),
		WithJournalStore(journal.NewStore(t.TempDir())),
	)

	_, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err == nil {
		t.Fatalf("expected unknown participant to be rejected")
	}
}

func TestSoleParticipantModeratesAndSpeaks(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedGenerator{}, "P1")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("expected sole-participant discussion to run, got %v", err)
	}
	if j.Len() == 0 {
		t.Fatalf("expected turns from the sole participant")
	}
	turns := j.Turns()
	for _, turn := range turns[:len(turns)-1] {
		if turn.Speaker != "P1" {
			t.Fatalf("expected every speaking turn from P1, got %s", turn.Speaker)
		}
	}
}

func TestEveryTurnIsBroadcast(t *testing.T) {
	engine, broadcaster := newTestEngine(t, &scriptedGenerator{}, "P1", "P2", "P3")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("expected discussion to run, got %v", err)
	}

	if len(broadcaster.messages) != j.Len() {
		t.Fatalf("expected %d broadcast messages, got %d", j.Len(), len(broadcaster.messages))
	}
	for _, msg := range broadcaster.messages {
		if msg.Text == "" {
			t.Fatalf("broadcast message for %s has empty text", msg.SpeakerID)
		}
	}
}

type timingOutProvider struct{}

func (timingOutProvider) Generate(context.Context, string, string, ...llms.GenerateOption) (string, error) {
	return "", llms.NewError(llms.ErrorTimeout, "scripted timeout", nil)
}

func TestTimeoutsFallBackAndRoundCompletes(t *testing.T) {
	providers := llms.NewRegistry("test")
	providers.Register("test", func() (llms.Provider, error) { return timingOutProvider{}, nil })
	generator := llms.NewClient(providers,
		llms.WithMaxRetries(2),
		llms.WithRetryBaseDelay(time.Nanosecond),
	)

	engine, _ := newTestEngine(t, generator, "P1", "P2", "P3")

	j, err := engine.StartPhaseDiscussion(context.Background(), "D1", 0)
	if err != nil {
		t.Fatalf("expected discussion to complete despite timeouts, got %v", err)
	}
	// Opening, both round speakers, announcement. The moderator's closing
	// fallback is identical to their opening fallback and dedups away.
	if j.Len() != 4 {
		t.Fatalf("expected 4 journaled turns, got %d", j.Len())
	}

	for _, turn := range j.Turns() {
		if turn.Speaker == journal.SpeakerSystem {
			continue
		}
		if !strings.Contains(turn.Text, "Speaker "+turn.Speaker) {
			t.Fatalf("expected fallback turn to name its speaker, got %q from %s", turn.Text, turn.Speaker)
		}
	}
}

func agents(ids ...string) []directory.Agent {
	out := []directory.Agent{}
	for _, id := range ids {
		out = append(out, directory.Agent{ID: id, Name: "Speaker " + id})
	}
	return out
}

func agentsOf(t *testing.T, engine *Engine, ids ...string) []directory.Agent {
	t.Helper()

	out := []directory.Agent{}
	for _, id := range ids {
		agent, err := engine.directory.Get(id)
		if err != nil || agent == nil {
			t.Fatalf("expected agent %s to resolve", id)
		}
		out = append(out, *agent)
	}
	return out
}
