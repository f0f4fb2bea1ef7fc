// Package journal keeps the ordered, append-only record of turns for one
// (discussion, phase) pair. The on-disk form is one JSON line per turn;
// recovery is replaying the log back into memory. A missing, empty or
// corrupt log is treated as "no existing turns", never as a fatal error.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Speaker sentinels for turns not attributed to a participant.
const (
	SpeakerUser   = "user"
	SpeakerSystem = "system"
)

// Turn is one attributed utterance.
type Turn struct {
	Speaker   string    `json:"agent_id"`
	Text      string    `json:"speech"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(speaker, text string) Turn {
	return Turn{Speaker: speaker, Text: text, Timestamp: time.Now()}
}

type dedupKey struct {
	speaker string
	text    string
}

// Store roots journals in one directory, one log file per
// (discussion, phase) key.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("failed to create journal directory", "dir", dir, "error", err)
	}
	return &Store{dir: dir}
}

// Path returns the log file location for a key. The naming follows the
// dialogue-history convention so existing logs stay readable.
func (s *Store) Path(discussionID string, phaseIndex int) string {
	return filepath.Join(s.dir, fmt.Sprintf("dialogue_history_%s_%d.jsonl", discussionID, phaseIndex))
}

// Load replays the log for a key into memory. Unreadable files and
// malformed lines are skipped with a warning.
func (s *Store) Load(discussionID string, phaseIndex int) *Journal {
	j := &Journal{
		path: s.Path(discussionID, phaseIndex),
		seen: map[dedupKey]struct{}{},
	}

	file, err := os.Open(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to open journal, starting empty", "path", j.path, "error", err)
		}
		return j
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var turn Turn
		if err := json.Unmarshal(line, &turn); err != nil {
			logger.Warn("skipping malformed journal line", "path", j.path, "error", err)
			continue
		}

		key := dedupKey{speaker: turn.Speaker, text: turn.Text}
		if _, ok := j.seen[key]; ok {
			continue
		}
		j.seen[key] = struct{}{}
		j.turns = append(j.turns, turn)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("error reading journal, keeping recovered prefix", "path", j.path, "error", err)
	}

	return j
}

// Journal is the in-memory replay of one log plus its append handle. Writers
// are expected to be serialized per key by the hosting layer; the mutex only
// guards against concurrent readers taking snapshots mid-append.
type Journal struct {
	mu sync.Mutex

	path  string
	turns []Turn
	seen  map[dedupKey]struct{}
}

// Append adds a turn and persists it immediately. Re-appending an identical
// (speaker, text) pair is a no-op, which is what makes recovery-driven
// re-merges safe. A persistence failure is logged and the in-memory state is
// kept; recovery is then only as good as the last successful persist.
func (j *Journal) Append(turn Turn) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := dedupKey{speaker: turn.Speaker, text: turn.Text}
	if _, ok := j.seen[key]; ok {
		return false
	}
	j.seen[key] = struct{}{}
	j.turns = append(j.turns, turn)

	if err := j.persist(turn); err != nil {
		logger.Warn("failed to persist turn", "path", j.path, "speaker", turn.Speaker, "error", err)
	}
	return true
}

func (j *Journal) persist(turn Turn) error {
	file, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal for append: %w", err)
	}
	defer file.Close()

	line, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write turn: %w", err)
	}
	return nil
}

// Len returns the number of recorded turns.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.turns)
}

// Turns returns a snapshot of all turns, oldest first.
func (j *Journal) Turns() []Turn {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.turns)
}

// Last returns the most recent turn not spoken by any of the excluded
// speakers, or nil if there is none.
func (j *Journal) Last(excludeSpeakers ...string) *Turn {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, turn := range slices.Backward(j.turns) {
		if !slices.Contains(excludeSpeakers, turn.Speaker) {
			t := turn
			return &t
		}
	}
	return nil
}

// BySpeaker returns the most recent turn for each listed speaker.
func (j *Journal) BySpeaker() map[string]Turn {
	j.mu.Lock()
	defer j.mu.Unlock()

	latest := map[string]Turn{}
	for _, turn := range j.turns {
		latest[turn.Speaker] = turn
	}
	return latest
}
