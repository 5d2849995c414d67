package contest

import (
	"github.com/skirmish-gg/skirmish/internal/dependencies/random"
	"github.com/skirmish-gg/skirmish/internal/model"
)

// Resolver decides a contest's outcome. Real game rules plug in here; the
// server only requires that exactly one roster member wins.
type Resolver interface {
	// Resolve returns the index of the winning roster member.
	Resolve(roster []*model.Session) int
}

// RandomResolver picks a uniformly random winner. This is the default
// outcome strategy and the one used in tests.
type RandomResolver struct {
	random random.Random
}

// NewRandomResolver creates a new RandomResolver
func NewRandomResolver(rnd random.Random) *RandomResolver {
	return &RandomResolver{random: rnd}
}

// Resolve returns a random roster index
func (r *RandomResolver) Resolve(roster []*model.Session) int {
	if len(roster) == 0 {
		return 0
	}
	return r.random.Intn(len(roster))
}
