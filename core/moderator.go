package roundtable

import (
	"hash/fnv"
	"math/rand"
	"slices"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
)

// SelectModerator deterministically assigns a moderator for a discussion:
// the discussion id alone seeds a local pseudo-random source, so the same
// id and participant set always yield the same moderator, across calls and
// across restarts. Later phases and question side-discussions therefore
// address the audience through a consistent moderator identity.
//
// The source is local; global randomness (round shuffle order) is untouched.
//
// Zero participants yields no moderator and an empty remainder. A sole
// participant moderates with an empty remainder.
func SelectModerator(discussionID string, participants []directory.Agent) (*directory.Agent, []directory.Agent) {
	if len(participants) == 0 {
		return nil, nil
	}

	h := fnv.New64a()
	h.Write([]byte(discussionID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	idx := rng.Intn(len(participants))
	moderator := participants[idx]

	remainder := make([]directory.Agent, 0, len(participants)-1)
	remainder = append(remainder, participants[:idx]...)
	remainder = append(remainder, participants[idx+1:]...)
	return &moderator, slices.Clip(remainder)
}
