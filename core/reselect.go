package roundtable

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
)

// conclusionMarkers flag a turn that tried to land a point; such speakers
// are kept engaged in follow-up rounds.
var conclusionMarkers = []string{
	"in conclusion",
	"to conclude",
	"to sum up",
	"in summary",
	"overall,",
}

// SelectFollowupSpeakers narrows the speaker set for rounds after the first
// using an engagement heuristic over each participant's most recent turn:
// normalized length (capped at 1.0 around 500 characters), 0.2 per question
// mark, and 1.0 for a conclusion marker. The top max(2, N/2) by descending
// score are kept; ties keep the original order. When nobody has spoken yet
// the subset is a uniform random sample of the same size.
func (e *Engine) SelectFollowupSpeakers(available []directory.Agent, j *journal.Journal) []directory.Agent {
	size := max(2, len(available)/2)
	if size > len(available) {
		size = len(available)
	}
	if size == len(available) {
		return available
	}

	latest := j.BySpeaker()

	anySpoke := false
	scores := make([]float64, len(available))
	for i, participant := range available {
		turn, ok := latest[participant.ID]
		if !ok {
			continue
		}
		anySpoke = true
		scores[i] = engagementScore(turn.Text)
	}

	if !anySpoke {
		sample := make([]directory.Agent, len(available))
		copy(sample, available)
		rand.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
		return sample[:size]
	}

	order := make([]int, len(available))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	selected := make([]directory.Agent, 0, size)
	for _, idx := range order[:size] {
		selected = append(selected, available[idx])
	}
	return selected
}

func engagementScore(text string) float64 {
	score := float64(len(text)) / 500
	if score > 1 {
		score = 1
	}
	score += 0.2 * float64(strings.Count(text, "?"))

	lowered := strings.ToLower(text)
	for _, marker := range conclusionMarkers {
		if strings.Contains(lowered, marker) {
			score += 1
			break
		}
	}
	return score
}
