// Package nip13 checks proof of work committed in the nonce tag of an event.
package nip13

import (
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
	nostrnip13 "github.com/nbd-wtf/go-nostr/nip13"
)

// Verifier checks events against the relay's minimum difficulty.
type Verifier struct {
	MinDifficulty int
}

// NonceTag returns the ["nonce", n, target] tag, if any.
func NonceTag(ev *nostr.Event) (nostr.Tag, bool) {
	for _, tag := range ev.Tags {
		if len(tag) >= 3 && tag[0] == "nonce" {
			return tag, true
		}
	}
	return nil, false
}

// IsProofOfWorkEvent reports whether the event commits to a target difficulty.
func IsProofOfWorkEvent(ev *nostr.Event) bool {
	_, ok := NonceTag(ev)
	return ok
}

// Difficulty is the number of leading zero bits of the event id.
func Difficulty(ev *nostr.Event) int {
	return nostrnip13.Difficulty(ev.ID)
}

// VerifyProofOfWork returns whether the event satisfies the proof of work
// rules and, when it does not, the reason for the client. With enabled set
// an event must carry work of at least MinDifficulty bits.
func (v Verifier) VerifyProofOfWork(ev *nostr.Event, enabled bool) (bool, string) {
	achieved := Difficulty(ev)

	tag, hasNonce := NonceTag(ev)
	if hasNonce {
		committed, err := strconv.Atoi(tag[2])
		if err != nil || committed < 0 {
			return false, "pow: invalid committed target difficulty"
		}
		if enabled && committed < v.MinDifficulty {
			return false, fmt.Sprintf("pow: committed target difficulty is less than %d", v.MinDifficulty)
		}
		if achieved < committed {
			return false, fmt.Sprintf("pow: difficulty %d is less than target %d", achieved, committed)
		}
	} else if enabled && v.MinDifficulty > 0 {
		return false, fmt.Sprintf("pow: proof of work required, difficulty %d", v.MinDifficulty)
	}

	return true, ""
}
