// Package roundtable is the turn-taking orchestration engine for multi-party
// discussions: it picks a moderator, runs rounds of participant turns,
// narrows follow-up rounds by an engagement heuristic, splices in user
// interventions, and journals every turn so an interrupted phase can resume.
package roundtable

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/broadcast"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine drives phase discussions. It is strictly sequential: each turn's
// generation depends on the previous turn's text, so there is no internal
// parallelism. The hosting layer must not run two overlapping calls for the
// same (discussion, phase) key; the idempotent-resume check is best-effort,
// not a lock.
type Engine struct {
	directory   Directory
	registry    Registry
	generator   Generator
	fetcher     ContextFetcher
	broadcaster Broadcaster
	journals    *journal.Store

	rounds            int
	maxAgentsPerRound int
	maxTokens         int
	temperature       float64
	modelFor          func(agentID string) string
}

// NewEngine builds an engine. Directory, registry, generator and journal
// store are required for discussion runs; fetcher and broadcaster are
// optional.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		rounds:            2,
		maxAgentsPerRound: 3,
		maxTokens:         1024,
		temperature:       0.7,
		modelFor:          func(string) string { return "" },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// phaseContext is everything resolved up front for one discussion run.
type phaseContext struct {
	discussion   *registry.Conference
	phase        registry.Phase
	phaseIndex   int
	topic        string
	participants []directory.Agent
	moderator    *directory.Agent
	remainder    []directory.Agent
	journal      *journal.Journal
}

// StartPhaseDiscussion runs one phase of a discussion to completion: opening
// statement, speaking rounds, moderator synthesis, and the announcement that
// user questions are accepted. A non-empty existing journal means the phase
// was already opened; the opening step is skipped and the discussion resumes
// on top of the persisted turns. The journal is returned in both cases.
func (e *Engine) StartPhaseDiscussion(ctx context.Context, discussionID string, phaseIndex int) (*journal.Journal, error) {
	ctx, span := tracer.Start(ctx, "phase discussion")
	defer span.End()
	span.SetAttributes(
		attribute.String("discussion.id", discussionID),
		attribute.Int("discussion.phase", phaseIndex),
	)

	pc, err := e.resolvePhase(discussionID, phaseIndex)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if last := pc.journal.Last(); last != nil && last.Speaker == journal.SpeakerSystem {
		// The closing announcement is already journaled: the phase ran to
		// completion and re-running it is a no-op.
		logger.Info("phase already completed, returning recovered journal",
			"discussion_id", discussionID,
			"phase", phaseIndex,
			"recovered_turns", pc.journal.Len(),
		)
		return pc.journal, nil
	}

	if pc.journal.Len() == 0 {
		e.openPhase(ctx, pc)
	} else {
		logger.Info("resuming already-opened phase",
			"discussion_id", discussionID,
			"phase", phaseIndex,
			"recovered_turns", pc.journal.Len(),
		)
	}

	speakers := pc.remainder
	if len(speakers) == 0 && pc.moderator != nil {
		// A sole participant moderates and speaks alone.
		speakers = []directory.Agent{*pc.moderator}
	}

	for round := 1; round <= e.rounds; round++ {
		if round > 1 {
			speakers = e.SelectFollowupSpeakers(pc.remainder, pc.journal)
		}
		e.runRound(ctx, pc, speakers)
	}

	e.closePhase(ctx, pc)
	e.appendTurn(pc, journal.NewTurn(journal.SpeakerSystem, questionsOpenText(pc.moderator)))

	return pc.journal, nil
}

// resolvePhase performs every precondition check before any journal
// mutation: the discussion must exist, the phase index must be on the
// agenda, and every participant id must resolve in the directory.
func (e *Engine) resolvePhase(discussionID string, phaseIndex int) (*phaseContext, error) {
	discussion, err := e.registry.Get(discussionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownDiscussion, discussionID, err)
	}
	if phaseIndex < 0 || phaseIndex >= len(discussion.Agenda) {
		return nil, fmt.Errorf("%w: %d (agenda has %d phases)", ErrInvalidPhase, phaseIndex, len(discussion.Agenda))
	}
	if len(discussion.ParticipantIDs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParticipants, discussionID)
	}

	participants := make([]directory.Agent, 0, len(discussion.ParticipantIDs))
	for _, id := range discussion.ParticipantIDs {
		agent, err := e.directory.Get(id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch participant %s: %w", id, err)
		}
		if agent == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
		participants = append(participants, *agent)
	}

	moderator, remainder := SelectModerator(discussionID, participants)

	phase := discussion.Agenda[phaseIndex]
	return &phaseContext{
		discussion:   discussion,
		phase:        phase,
		phaseIndex:   phaseIndex,
		topic:        strings.Join(phase.Topics, "; "),
		participants: participants,
		moderator:    moderator,
		remainder:    remainder,
		journal:      e.journals.Load(discussionID, phaseIndex),
	}, nil
}

func (e *Engine) openPhase(ctx context.Context, pc *phaseContext) {
	background := e.fetchBackground(ctx, pc)
	e.speak(ctx, pc, *pc.moderator, openingPrompt(pc.moderator.Name, pc.topic, pc.phase, background))
}

// fetchBackground is best-effort: any fetch failure collapses to a plain
// notice so the opening statement can still be generated.
func (e *Engine) fetchBackground(ctx context.Context, pc *phaseContext) string {
	if e.fetcher == nil {
		return noBackgroundNotice
	}

	hints := []string{}
	for _, participant := range pc.participants {
		hints = append(hints, participant.Background.Skills...)
	}

	background, err := e.fetcher.FetchContext(ctx, pc.topic, hints)
	if err != nil || background == "" {
		if err != nil {
			logger.Warn("context fetch failed, using plain notice", "topic", pc.topic, "error", err)
		}
		return noBackgroundNotice
	}
	return background
}

// runRound shuffles the speaker set and lets each speak exactly once, each
// turn conditioned on the last non-user turn so a live question does not
// derail topic continuity.
func (e *Engine) runRound(ctx context.Context, pc *phaseContext, speakers []directory.Agent) {
	order := make([]directory.Agent, len(speakers))
	copy(order, speakers)
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, speaker := range order {
		previous := pc.journal.Last(journal.SpeakerUser)
		prompt := turnPrompt(speaker.Name, pc.topic, e.turnContext(pc, previous))
		e.speak(ctx, pc, speaker, prompt)
	}
}

func (e *Engine) turnContext(pc *phaseContext, previous *journal.Turn) string {
	if previous == nil {
		return ""
	}
	return fmt.Sprintf("%s said: %s", e.displayName(pc, previous.Speaker), previous.Text)
}

// closePhase appends the moderator's synthesis over the non-moderator turns.
func (e *Engine) closePhase(ctx context.Context, pc *phaseContext) {
	if pc.moderator == nil {
		return
	}

	transcript := []string{}
	for _, turn := range pc.journal.Turns() {
		if turn.Speaker == pc.moderator.ID || turn.Speaker == journal.SpeakerSystem {
			continue
		}
		transcript = append(transcript, fmt.Sprintf("%s: %s", e.displayName(pc, turn.Speaker), turn.Text))
	}

	e.speak(ctx, pc, *pc.moderator, synthesisPrompt(pc.moderator.Name, pc.topic, strings.Join(transcript, "\n")))
}

// speak generates one turn for a speaker and appends it. A panic out of the
// generation step is contained here: the failure is logged and the round
// moves on to the next speaker.
func (e *Engine) speak(ctx context.Context, pc *phaseContext, speaker directory.Agent, prompt string) {
	defer func() {
		if r := recover(); r != nil {
			recoveredErr := fmt.Errorf("speaker turn panicked: %v", r)
			span := trace.SpanFromContext(ctx)
			span.RecordError(recoveredErr)
			span.SetStatus(codes.Error, recoveredErr.Error())
			logger.Error("speaker turn panicked, continuing round",
				"discussion_id", pc.discussion.ID,
				"speaker", speaker.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	text := e.generator.GenerateWithRetry(ctx, llms.Request{
		Model:        e.modelFor(speaker.ID),
		Prompt:       prompt,
		Instructions: personaInstructions(speaker),
		MaxTokens:    e.maxTokens,
		Temperature:  e.temperature,
		SpeakerName:  speaker.Name,
		Topic:        pc.topic,
	})
	text = SubstituteNames(text, pc.participants)

	e.appendTurn(pc, journal.NewTurn(speaker.ID, text))
}

// appendTurn records a turn and hands it to the broadcaster. A deduplicated
// re-append is not re-broadcast.
func (e *Engine) appendTurn(pc *phaseContext, turn journal.Turn) {
	if !pc.journal.Append(turn) {
		return
	}
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Publish(pc.discussion.ID, broadcast.TurnMessage{
		SpeakerID:   turn.Speaker,
		SpeakerName: e.displayName(pc, turn.Speaker),
		Text:        turn.Text,
		Timestamp:   turn.Timestamp,
	})
}

func (e *Engine) displayName(pc *phaseContext, speakerID string) string {
	for _, participant := range pc.participants {
		if participant.ID == speakerID {
			return participant.Name
		}
	}
	return speakerID
}
