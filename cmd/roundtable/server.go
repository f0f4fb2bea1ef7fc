package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	roundtable "github.com/maxwell66666/RoundTable-AI-Conference/core"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/broadcast"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/config"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms/openai"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
)

type server struct {
	cfg         config.Config
	engine      *roundtable.Engine
	agents      *directory.Store
	conferences *registry.Store
	journals    *journal.Store
	hub         *broadcast.Hub
	agendaLLM   *openai.Client

	upgrader websocket.Upgrader
}

func newServer(
	cfg config.Config,
	engine *roundtable.Engine,
	agents *directory.Store,
	conferences *registry.Store,
	journals *journal.Store,
	hub *broadcast.Hub,
	agendaLLM *openai.Client,
) *server {
	return &server{
		cfg:         cfg,
		engine:      engine,
		agents:      agents,
		conferences: conferences,
		journals:    journals,
		hub:         hub,
		agendaLLM:   agendaLLM,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /agents", s.createAgent)
	mux.HandleFunc("GET /agents", s.listAgents)
	mux.HandleFunc("GET /agents/{id}", s.getAgent)
	mux.HandleFunc("PUT /agents/{id}", s.updateAgent)
	mux.HandleFunc("DELETE /agents/{id}", s.deleteAgent)

	mux.HandleFunc("POST /conferences", s.createConference)
	mux.HandleFunc("GET /conferences", s.listConferences)
	mux.HandleFunc("GET /conferences/{id}", s.getConference)
	mux.HandleFunc("POST /conferences/{id}/start", s.startConference)
	mux.HandleFunc("POST /conferences/{id}/advance", s.advancePhase)
	mux.HandleFunc("POST /conferences/{id}/end", s.endConference)

	mux.HandleFunc("POST /conferences/{id}/phases/{phase}/discussion", s.runDiscussion)
	mux.HandleFunc("POST /conferences/{id}/phases/{phase}/intervene", s.intervene)
	mux.HandleFunc("GET /conferences/{id}/phases/{phase}/transcript", s.transcript)

	mux.HandleFunc("GET /ws/{id}", s.listen)

	return mux
}

func (s *server) createAgent(w http.ResponseWriter, r *http.Request) {
	var agent directory.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.agents.Create(agent); err != nil {
		if errors.Is(err, directory.ErrAgentExists) {
			httpError(w, http.StatusConflict, err)
			return
		}
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *server) listAgents(w http.ResponseWriter, r *http.Request) {
	filters := &directory.Filters{
		Skill: r.URL.Query().Get("skill"),
		MBTI:  r.URL.Query().Get("mbti"),
		Mood:  r.URL.Query().Get("mood"),
	}
	agents, err := s.agents.List(filters)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *server) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.agents.Get(r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if agent == nil {
		httpError(w, http.StatusNotFound, errors.New("agent not found"))
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *server) updateAgent(w http.ResponseWriter, r *http.Request) {
	var agent directory.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.agents.Update(r.PathValue("id"), agent); err != nil {
		httpError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *server) deleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.agents.Delete(r.PathValue("id")); err != nil {
		httpError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createConferenceRequest struct {
	Title          string           `json:"title"`
	Topic          string           `json:"topic,omitempty"`
	Agenda         []registry.Phase `json:"agenda,omitempty"`
	ParticipantIDs []string         `json:"participant_agent_ids"`
}

func (s *server) createConference(w http.ResponseWriter, r *http.Request) {
	var req createConferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	agenda := req.Agenda
	if len(agenda) == 0 && req.Topic != "" {
		if s.agendaLLM == nil {
			httpError(w, http.StatusServiceUnavailable, errors.New("agenda suggestion is not configured"))
			return
		}
		// The agenda client is bound to the default provider already; strip
		// its prefix from the configured model string.
		model := strings.TrimPrefix(s.cfg.DefaultModel, s.cfg.DefaultProvider+":")
		suggested, err := registry.SuggestAgenda(r.Context(), s.agendaLLM, model, req.Topic)
		if err != nil {
			httpError(w, http.StatusBadGateway, err)
			return
		}
		agenda = suggested
	}
	if len(agenda) == 0 {
		httpError(w, http.StatusBadRequest, errors.New("either agenda or topic is required"))
		return
	}

	conference, err := s.conferences.Create(req.Title, agenda, req.ParticipantIDs)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownParticipant) {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, conference)
}

func (s *server) listConferences(w http.ResponseWriter, r *http.Request) {
	conferences, err := s.conferences.List()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, conferences)
}

func (s *server) getConference(w http.ResponseWriter, r *http.Request) {
	conference, err := s.conferences.Get(r.PathValue("id"))
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, conference)
}

func (s *server) startConference(w http.ResponseWriter, r *http.Request) {
	if err := s.conferences.Start(r.PathValue("id")); err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current_phase_index": 0})
}

func (s *server) advancePhase(w http.ResponseWriter, r *http.Request) {
	next, err := s.conferences.AdvancePhase(r.PathValue("id"))
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current_phase_index": next})
}

type endConferenceRequest struct {
	Summary string `json:"summary"`
}

func (s *server) endConference(w http.ResponseWriter, r *http.Request) {
	var req endConferenceRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := s.conferences.End(r.PathValue("id"), req.Summary); err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runDiscussion kicks the phase discussion off in the background under the
// configured overall timeout and returns immediately; the live transcript is
// available over the websocket. Turns appended before a timeout stay valid.
func (s *server) runDiscussion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	phase, err := strconv.Atoi(r.PathValue("phase"))
	if err != nil {
		httpError(w, http.StatusBadRequest, errors.New("phase must be an integer"))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PhaseTimeout)
		defer cancel()

		if _, err := s.engine.StartPhaseDiscussion(ctx, id, phase); err != nil {
			log.Printf("phase discussion failed for %s/%d: %v", id, phase, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "running"})
}

type interveneRequest struct {
	Action   string `json:"action"`
	TargetID string `json:"target_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (s *server) intervene(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	phase, err := strconv.Atoi(r.PathValue("phase"))
	if err != nil {
		httpError(w, http.StatusBadRequest, errors.New("phase must be an integer"))
		return
	}

	var req interveneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	j, err := s.engine.Intervene(r.Context(), id, phase, req.Action, req.TargetID, req.Text)
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, j.Turns())
}

func (s *server) transcript(w http.ResponseWriter, r *http.Request) {
	phase, err := strconv.Atoi(r.PathValue("phase"))
	if err != nil {
		httpError(w, http.StatusBadRequest, errors.New("phase must be an integer"))
		return
	}

	j := s.journals.Load(r.PathValue("id"), phase)
	writeJSON(w, http.StatusOK, j.Turns())
}

// listen upgrades to a websocket, replays the current phase's journal and
// then streams newly appended turns until the client goes away.
func (s *server) listen(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conference, err := s.conferences.Get(id)
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	phase := conference.CurrentPhaseIndex
	if phase < 0 {
		phase = 0
	}
	for _, turn := range s.journals.Load(id, phase).Turns() {
		if err := conn.WriteJSON(broadcast.TurnMessage{
			SpeakerID: turn.Speaker,
			Text:      turn.Text,
			Timestamp: turn.Timestamp,
		}); err != nil {
			conn.Close()
			return
		}
	}

	s.hub.Register(id, conn)

	// Reads are discarded; the read loop only notices disconnection.
	go func() {
		defer func() {
			s.hub.Unregister(id, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrConferenceNotFound),
		errors.Is(err, roundtable.ErrUnknownDiscussion):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrUnknownParticipant),
		errors.Is(err, registry.ErrNotStarted),
		errors.Is(err, registry.ErrAlreadyStarted),
		errors.Is(err, registry.ErrNoMorePhases),
		errors.Is(err, roundtable.ErrInvalidPhase),
		errors.Is(err, roundtable.ErrNoParticipants),
		errors.Is(err, roundtable.ErrUnknownParticipant),
		errors.Is(err, roundtable.ErrUnknownAction),
		errors.Is(err, roundtable.ErrMissingQuestionTarget),
		errors.Is(err, roundtable.ErrMissingQuestionText):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
