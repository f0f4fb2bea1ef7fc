// Package registry tracks discussions (conferences): their agenda of phases,
// participants and lifecycle. The discussion core reads from it but never
// advances lifecycle state itself; that stays with the hosting layer.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/maxwell66666/RoundTable-AI-Conference/internal/utils"
	_ "modernc.org/sqlite"
)

var (
	ErrConferenceNotFound = errors.New("conference not found")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNotStarted         = errors.New("conference not started")
	ErrAlreadyStarted     = errors.New("conference already started")
	ErrNoMorePhases       = errors.New("no more phases")
)

// Phase is one agenda item of a conference.
type Phase struct {
	Name         string   `json:"name"`
	Topics       []string `json:"topics"`
	Instructions string   `json:"instructions,omitempty"`
}

// Conference is one discussion lifecycle record. CurrentPhaseIndex is -1
// until the conference is started.
type Conference struct {
	ID                string
	Title             string
	Agenda            []Phase
	ParticipantIDs    []string
	StartTime         *time.Time
	EndTime           *time.Time
	Summary           string
	CurrentPhaseIndex int
}

// ParticipantChecker validates that a participant id exists. Satisfied by the
// agent directory.
type ParticipantChecker interface {
	Has(id string) (bool, error)
}

// Store is the sqlite-backed conference registry.
type Store struct {
	db           *sql.DB
	participants ParticipantChecker
}

// Open initialises the registry at path. participants may be nil, in which
// case Create skips participant validation.
func Open(path string, participants ParticipantChecker) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open conference database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conferences (
			conference_id TEXT PRIMARY KEY NOT NULL,
			title TEXT NOT NULL,
			agenda TEXT NOT NULL,
			participant_agent_ids TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			summary TEXT NOT NULL DEFAULT '',
			current_phase_index INTEGER NOT NULL DEFAULT -1
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conferences table: %w", err)
	}

	return &Store{db: db, participants: participants}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Create registers a new conference and returns its generated id. Every
// participant id must exist in the directory.
func (s *Store) Create(title string, agenda []Phase, participantIDs []string) (*Conference, error) {
	if s.participants != nil {
		for _, id := range participantIDs {
			ok, err := s.participants.Has(id)
			if err != nil {
				return nil, fmt.Errorf("failed to check participant %s: %w", id, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
			}
		}
	}

	conference := Conference{
		ID:                uuid.NewString(),
		Title:             title,
		Agenda:            agenda,
		ParticipantIDs:    participantIDs,
		CurrentPhaseIndex: -1,
	}

	agendaJSON, participantsJSON, err := encodeColumns(conference)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`
		INSERT INTO conferences (conference_id, title, agenda, participant_agent_ids, current_phase_index)
		VALUES (?, ?, ?, ?, ?)
	`, conference.ID, conference.Title, agendaJSON, participantsJSON, conference.CurrentPhaseIndex); err != nil {
		return nil, fmt.Errorf("failed to insert conference: %w", err)
	}
	return &conference, nil
}

// Get returns a deep copy of the conference, or ErrConferenceNotFound.
func (s *Store) Get(id string) (*Conference, error) {
	row := s.db.QueryRow(`SELECT conference_id, title, agenda, participant_agent_ids, start_time, end_time, summary, current_phase_index FROM conferences WHERE conference_id = ?`, id)

	conference, err := scanConference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConferenceNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var clone Conference
	if err := copier.CopyWithOption(&clone, conference, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy conference %s: %w", id, err)
	}
	return &clone, nil
}

// List returns all conferences in creation order.
func (s *Store) List() ([]Conference, error) {
	rows, err := s.db.Query(`SELECT conference_id, title, agenda, participant_agent_ids, start_time, end_time, summary, current_phase_index FROM conferences ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conferences: %w", err)
	}
	defer rows.Close()

	conferences := []Conference{}
	for rows.Next() {
		conference, err := scanConference(rows)
		if err != nil {
			return nil, err
		}
		conferences = append(conferences, *conference)
	}
	return conferences, rows.Err()
}

// Start moves the conference from not-started to its first phase and stamps
// the start time.
func (s *Store) Start(id string) error {
	conference, err := s.Get(id)
	if err != nil {
		return err
	}
	if conference.CurrentPhaseIndex >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, id)
	}

	now := time.Now().UTC()
	if _, err := s.db.Exec(`UPDATE conferences SET current_phase_index = 0, start_time = ? WHERE conference_id = ?`, now.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to start conference %s: %w", id, err)
	}
	return nil
}

// AdvancePhase moves to the next agenda phase. Advancing past the last phase
// returns ErrNoMorePhases; End is the way to close out.
func (s *Store) AdvancePhase(id string) (int, error) {
	conference, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	if conference.CurrentPhaseIndex < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotStarted, id)
	}

	next := conference.CurrentPhaseIndex + 1
	if next >= len(conference.Agenda) {
		return conference.CurrentPhaseIndex, fmt.Errorf("%w: %s", ErrNoMorePhases, id)
	}

	if _, err := s.db.Exec(`UPDATE conferences SET current_phase_index = ? WHERE conference_id = ?`, next, id); err != nil {
		return 0, fmt.Errorf("failed to advance conference %s: %w", id, err)
	}
	return next, nil
}

// End closes the conference, stamping the end time and recording the final
// summary.
func (s *Store) End(id string, summary string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := s.db.Exec(`UPDATE conferences SET end_time = ?, summary = ? WHERE conference_id = ?`, now.Format(time.RFC3339), summary, id); err != nil {
		return fmt.Errorf("failed to end conference %s: %w", id, err)
	}
	return nil
}

// Delete removes a conference record.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM conferences WHERE conference_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conference %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrConferenceNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConference(row rowScanner) (*Conference, error) {
	var (
		conference                 Conference
		agendaJSON, participantsJSON string
		startTime, endTime         sql.NullString
	)
	if err := row.Scan(&conference.ID, &conference.Title, &agendaJSON, &participantsJSON, &startTime, &endTime, &conference.Summary, &conference.CurrentPhaseIndex); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(agendaJSON), &conference.Agenda); err != nil {
		return nil, fmt.Errorf("failed to decode agenda for %s: %w", conference.ID, err)
	}
	if err := json.Unmarshal([]byte(participantsJSON), &conference.ParticipantIDs); err != nil {
		return nil, fmt.Errorf("failed to decode participants for %s: %w", conference.ID, err)
	}
	if startTime.Valid {
		t, err := time.Parse(time.RFC3339, startTime.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time for %s: %w", conference.ID, err)
		}
		conference.StartTime = utils.Ptr(t)
	}
	if endTime.Valid {
		t, err := time.Parse(time.RFC3339, endTime.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end time for %s: %w", conference.ID, err)
		}
		conference.EndTime = utils.Ptr(t)
	}
	return &conference, nil
}

func encodeColumns(conference Conference) (agendaJSON, participantsJSON string, err error) {
	if conference.Agenda == nil {
		conference.Agenda = []Phase{}
	}
	agendaBytes, err := json.Marshal(conference.Agenda)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode agenda: %w", err)
	}
	if conference.ParticipantIDs == nil {
		conference.ParticipantIDs = []string{}
	}
	participantsBytes, err := json.Marshal(conference.ParticipantIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode participants: %w", err)
	}
	return string(agendaBytes), string(participantsBytes), nil
}
