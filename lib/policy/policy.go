// Package policy holds the relay write policy and the ordered decision
// table that routes an incoming event.
package policy

import (
	"encoding/hex"
	"fmt"
)

// Config is the write policy of the relay. It is built once on start and
// shared by value; nothing changes it afterwards.
type Config struct {
	RelayOwner            string
	AllPass               bool
	FollowsPass           bool
	ProofOfWorkEnabled    bool
	ProofOfWorkDifficulty int
}

// Validate checks the owner key shape and the difficulty range.
func (c Config) Validate() error {
	if c.RelayOwner != "" {
		if len(c.RelayOwner) != 64 {
			return fmt.Errorf("policy: relay owner must be a 64 character hex public key")
		}
		if _, err := hex.DecodeString(c.RelayOwner); err != nil {
			return fmt.Errorf("policy: relay owner is not hex: %w", err)
		}
	}
	if c.ProofOfWorkDifficulty < 0 || c.ProofOfWorkDifficulty > 256 {
		return fmt.Errorf("policy: proof of work difficulty %d out of range", c.ProofOfWorkDifficulty)
	}
	return nil
}

// Route is the admission path chosen for an event.
type Route int

const (
	// Rejected events get "invalid: this private relay".
	Rejected Route = iota
	PassListed
	Gated
)

func (r Route) String() string {
	switch r {
	case PassListed:
		return "pass_listed"
	case Gated:
		return "gated"
	default:
		return "rejected"
	}
}

// Input is everything the decision table looks at.
type Input struct {
	Pubkey     string
	InPassList bool
}

type rule struct {
	name  string
	match func(c Config, in Input) bool
	route Route
}

// Order matters, the first matching rule wins.
var rules = []rule{
	{
		name:  "all_pass",
		match: func(c Config, _ Input) bool { return c.AllPass && !c.FollowsPass },
		route: PassListed,
	},
	{
		name:  "follows_pass",
		match: func(c Config, in Input) bool { return c.FollowsPass && in.InPassList },
		route: PassListed,
	},
	{
		name:  "proof_of_work",
		match: func(c Config, in Input) bool { return c.ProofOfWorkEnabled && !in.InPassList },
		route: Gated,
	},
	{
		name:  "not_owner",
		match: func(c Config, in Input) bool { return !c.FollowsPass && in.Pubkey != c.RelayOwner },
		route: Gated,
	},
}

// Decide returns the route for an event and the name of the rule that
// matched ("" when nothing matched and the event is rejected).
func Decide(c Config, in Input) (Route, string) {
	for _, r := range rules {
		if r.match(c, in) {
			return r.route, r.name
		}
	}
	return Rejected, ""
}
