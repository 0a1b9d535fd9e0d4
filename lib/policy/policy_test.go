package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = strings.Repeat("a", 64)

// reference mirrors the nested conditions the decision table replaces.
func reference(c Config, in Input) Route {
	if c.AllPass && !c.FollowsPass {
		return PassListed
	}
	if c.FollowsPass && in.InPassList {
		return PassListed
	}
	if c.ProofOfWorkEnabled && !in.InPassList {
		return Gated
	}
	if !c.FollowsPass && in.Pubkey != c.RelayOwner {
		return Gated
	}
	return Rejected
}

func TestDecideCoversEveryFlagCombination(t *testing.T) {
	other := strings.Repeat("b", 64)

	for mask := 0; mask < 32; mask++ {
		c := Config{
			RelayOwner:         owner,
			AllPass:            mask&1 != 0,
			FollowsPass:        mask&2 != 0,
			ProofOfWorkEnabled: mask&4 != 0,
		}
		in := Input{InPassList: mask&8 != 0}
		if mask&16 != 0 {
			in.Pubkey = owner
		} else {
			in.Pubkey = other
		}

		got, name := Decide(c, in)
		require.Equal(t, reference(c, in), got, "mask %05b", mask)
		if got == Rejected {
			assert.Empty(t, name)
		} else {
			assert.NotEmpty(t, name)
		}
	}
}

func TestAllPassWins(t *testing.T) {
	route, name := Decide(Config{AllPass: true, ProofOfWorkEnabled: true}, Input{Pubkey: "x"})
	assert.Equal(t, PassListed, route)
	assert.Equal(t, "all_pass", name)
}

func TestFollowsPassOutsiderIsRejected(t *testing.T) {
	route, _ := Decide(Config{RelayOwner: owner, FollowsPass: true}, Input{Pubkey: strings.Repeat("c", 64)})
	assert.Equal(t, Rejected, route)
}

func TestFollowsPassWithWorkGatesOutsider(t *testing.T) {
	route, name := Decide(Config{RelayOwner: owner, FollowsPass: true, ProofOfWorkEnabled: true}, Input{Pubkey: "x"})
	assert.Equal(t, Gated, route)
	assert.Equal(t, "proof_of_work", name)
}

func TestOwnerWithoutFollowsIsRejected(t *testing.T) {
	route, _ := Decide(Config{RelayOwner: owner}, Input{Pubkey: owner})
	assert.Equal(t, Rejected, route)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{RelayOwner: owner, ProofOfWorkDifficulty: 20}.Validate())
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{RelayOwner: "abc"}.Validate())
	assert.Error(t, Config{RelayOwner: strings.Repeat("z", 64)}.Validate())
	assert.Error(t, Config{ProofOfWorkDifficulty: -1}.Validate())
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "gated", Gated.String())
	assert.Equal(t, "pass_listed", PassListed.String())
	assert.Equal(t, "rejected", Rejected.String())
}
