// Package directory is the agent directory: persistent profiles of the
// simulated participants. Profiles are immutable for the duration of a
// discussion; the discussion core only reads them.
package directory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinzhu/copier"
	_ "modernc.org/sqlite"
)

var ErrAgentExists = errors.New("agent already exists")

// Background holds an agent's professional profile.
type Background struct {
	Education string   `json:"education,omitempty"`
	Skills    []string `json:"skills"`
}

// Personality holds the descriptors the prompt templates draw from.
type Personality struct {
	Mood     string `json:"mood,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	MBTI     string `json:"mbti,omitempty"`
}

// Communication describes how an agent phrases its speech.
type Communication struct {
	Style string `json:"style,omitempty"`
	Tone  string `json:"tone,omitempty"`
}

// Agent is one simulated participant profile.
type Agent struct {
	ID                 string
	Name               string
	Background         Background
	Personality        Personality
	KnowledgeBaseLinks []string
	Communication      Communication
}

// Filters narrows List results. Empty fields match everything.
type Filters struct {
	Skill string
	MBTI  string
	Mood  string
}

// Store is the sqlite-backed agent directory.
type Store struct {
	db *sql.DB
}

// Open initialises the directory at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY NOT NULL,
			name TEXT NOT NULL,
			background_info TEXT NOT NULL,
			personality_traits TEXT NOT NULL,
			knowledge_base_links TEXT NOT NULL,
			communication_style TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create agents table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new agent profile.
func (s *Store) Create(agent Agent) error {
	existing, err := s.Get(agent.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAgentExists, agent.ID)
	}

	background, personality, links, communication, err := encodeColumns(agent)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO agents (agent_id, name, background_info, personality_traits, knowledge_base_links, communication_style)
		VALUES (?, ?, ?, ?, ?, ?)
	`, agent.ID, agent.Name, background, personality, links, communication)
	if err != nil {
		return fmt.Errorf("failed to insert agent %s: %w", agent.ID, err)
	}
	return nil
}

// Get returns the agent with the given id, or nil if absent. The returned
// profile is a deep copy; callers may not mutate stored state through it.
func (s *Store) Get(id string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT agent_id, name, background_info, personality_traits, knowledge_base_links, communication_style FROM agents WHERE agent_id = ?`, id)

	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var clone Agent
	if err := copier.Copy(&clone, agent); err != nil {
		return nil, fmt.Errorf("failed to copy agent %s: %w", id, err)
	}
	return &clone, nil
}

// SeedIfEmpty inserts the given agents when the directory holds none, so a
// fresh deployment has a usable roster.
func (s *Store) SeedIfEmpty(agents []Agent) error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count agents: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, agent := range agents {
		if err := s.Create(agent); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether an agent with the given id exists.
func (s *Store) Has(id string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents WHERE agent_id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check agent %s: %w", id, err)
	}
	return count > 0, nil
}

// List returns all agents matching the filters, in insertion order.
func (s *Store) List(filters *Filters) ([]Agent, error) {
	query := `SELECT agent_id, name, background_info, personality_traits, knowledge_base_links, communication_style FROM agents`
	args := []any{}
	if filters != nil {
		conditions := []string{}
		if filters.Skill != "" {
			conditions = append(conditions, "background_info LIKE ?")
			args = append(args, "%"+filters.Skill+"%")
		}
		if filters.MBTI != "" {
			conditions = append(conditions, "personality_traits LIKE ?")
			args = append(args, "%"+filters.MBTI+"%")
		}
		if filters.Mood != "" {
			conditions = append(conditions, "personality_traits LIKE ?")
			args = append(args, "%"+filters.Mood+"%")
		}
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}
	}
	query += " ORDER BY rowid"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := []Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// Update replaces an existing agent's profile.
func (s *Store) Update(id string, agent Agent) error {
	background, personality, links, communication, err := encodeColumns(agent)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(`
		UPDATE agents SET
			name = ?,
			background_info = ?,
			personality_traits = ?,
			knowledge_base_links = ?,
			communication_style = ?
		WHERE agent_id = ?
	`, agent.Name, background, personality, links, communication, id)
	if err != nil {
		return fmt.Errorf("failed to update agent %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("no agent found with id %s", id)
	}
	return nil
}

// Delete removes an agent.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM agents WHERE agent_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("no agent found with id %s", id)
	}
	return nil
}

// RandomIDs picks n agent ids. With mbtiDiverse set it prefers distinct MBTI
// types. Fewer than n stored agents returns all of them.
func (s *Store) RandomIDs(n int, mbtiDiverse bool) ([]string, error) {
	agents, err := s.List(nil)
	if err != nil {
		return nil, err
	}

	if len(agents) <= n {
		ids := make([]string, len(agents))
		for i, agent := range agents {
			ids[i] = agent.ID
		}
		return ids, nil
	}

	shuffled := make([]Agent, len(agents))
	copy(shuffled, agents)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	if !mbtiDiverse {
		ids := make([]string, 0, n)
		for _, agent := range shuffled[:n] {
			ids = append(ids, agent.ID)
		}
		return ids, nil
	}

	seenTypes := map[string]struct{}{}
	ids := []string{}
	for _, agent := range shuffled {
		mbti := agent.Personality.MBTI
		if mbti == "" {
			mbti = "Unknown"
		}
		if _, ok := seenTypes[mbti]; ok {
			continue
		}
		seenTypes[mbti] = struct{}{}
		ids = append(ids, agent.ID)
		if len(ids) >= n {
			break
		}
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var (
		agent                                       Agent
		background, personality, links, communication string
	)
	if err := row.Scan(&agent.ID, &agent.Name, &background, &personality, &links, &communication); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(background), &agent.Background); err != nil {
		return nil, fmt.Errorf("failed to decode background for %s: %w", agent.ID, err)
	}
	if err := json.Unmarshal([]byte(personality), &agent.Personality); err != nil {
		return nil, fmt.Errorf("failed to decode personality for %s: %w", agent.ID, err)
	}
	if err := json.Unmarshal([]byte(links), &agent.KnowledgeBaseLinks); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge links for %s: %w", agent.ID, err)
	}
	if err := json.Unmarshal([]byte(communication), &agent.Communication); err != nil {
		return nil, fmt.Errorf("failed to decode communication for %s: %w", agent.ID, err)
	}
	return &agent, nil
}

func encodeColumns(agent Agent) (background, personality, links, communication string, err error) {
	backgroundBytes, err := json.Marshal(agent.Background)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode background: %w", err)
	}
	personalityBytes, err := json.Marshal(agent.Personality)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode personality: %w", err)
	}
	if agent.KnowledgeBaseLinks == nil {
		agent.KnowledgeBaseLinks = []string{}
	}
	linksBytes, err := json.Marshal(agent.KnowledgeBaseLinks)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode knowledge links: %w", err)
	}
	communicationBytes, err := json.Marshal(agent.Communication)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode communication: %w", err)
	}
	return string(backgroundBytes), string(personalityBytes), string(linksBytes), string(communicationBytes), nil
}
