package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	lib_nostr "github.com/HORNET-Storage/hornet-gatekeeper/lib/handlers/nostr"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/nip09"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/nip13"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/policy"
)

const (
	MsgDuplicate         = "duplicate: already have this event"
	MsgPrivateRelay      = "invalid: this private relay"
	MsgSaveFailed        = "error: could not save event to the database"
	MsgSaveAfterDeletion = "error: could not save event to the database after deletion"
	MsgSaveProofOfWork   = "error: could not save Proof of Work event"
)

// Outcome is the verdict for one event, sent to the client as OK.
type Outcome struct {
	Accepted bool
	Message  string
}

func accepted(msg string) Outcome { return Outcome{Accepted: true, Message: msg} }
func rejected(msg string) Outcome { return Outcome{Accepted: false, Message: msg} }

// Admit handles one EVENT. status and warning come from validation; a
// failed validation is answered without touching the store or the cache.
// Exactly one OK, or one NOTICE on a store or cache fault, is sent. The
// returned error is only a failure to write to the session.
func (e *Engine) Admit(ctx context.Context, sess lib_nostr.Session, ev *nostr.Event, status bool, warning string) error {
	if !status {
		e.metrics.Admission("invalid", "rejected")
		return lib_nostr.SendOK(sess, ev.ID, false, warning)
	}

	list := e.passList.Resolve(ctx, e.policy.RelayOwner)
	route, rule := policy.Decide(e.policy, policy.Input{
		Pubkey:     ev.PubKey,
		InPassList: list.Contains(ev.PubKey),
	})

	var (
		outcome Outcome
		err     error
	)
	switch route {
	case policy.PassListed:
		outcome, err = e.admitPassListed(ctx, ev)
	case policy.Gated:
		outcome, err = e.admitGated(ctx, ev)
	default:
		outcome = rejected(MsgPrivateRelay)
	}

	fields := logging.Fields{
		"event":  ev.ID,
		"pubkey": ev.PubKey,
		"kind":   ev.Kind,
		"route":  route.String(),
		"rule":   rule,
	}

	if err != nil {
		fields["error"] = err
		e.log.Error("Failed to handle event", fields)
		e.metrics.Admission(route.String(), "error")
		e.metrics.Notice()
		return lib_nostr.SendNotice(sess, "error: "+err.Error())
	}

	if outcome.Accepted {
		if err := e.dedupe.MarkAccepted(ctx, ev.ID); err != nil {
			e.log.Warn("Failed to record accepted event in dedupe cache", logging.Fields{"event": ev.ID, "error": err})
		}
		e.log.Info("Event accepted", fields)
		e.metrics.Admission(route.String(), "accepted")
	} else {
		fields["reason"] = outcome.Message
		e.log.Info("Event rejected", fields)
		e.metrics.Admission(route.String(), "rejected")
	}

	return lib_nostr.SendOK(sess, ev.ID, outcome.Accepted, outcome.Message)
}

// Pass listed: duplicate, proof of work carried anyway, deletion, save.
func (e *Engine) admitPassListed(ctx context.Context, ev *nostr.Event) (Outcome, error) {
	dup, err := e.isDuplicate(ctx, ev.ID)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case dup:
		return rejected(MsgDuplicate), nil
	case nip13.IsProofOfWorkEvent(ev):
		return e.saveProofOfWork(ctx, ev, false)
	case nip09.IsDeletable(ev):
		return e.saveDeletion(ctx, ev)
	default:
		return e.saveNormal(ctx, ev)
	}
}

// Gated: duplicate, deletion, then proof of work. Deletions never need work.
func (e *Engine) admitGated(ctx context.Context, ev *nostr.Event) (Outcome, error) {
	dup, err := e.isDuplicate(ctx, ev.ID)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case dup:
		return rejected(MsgDuplicate), nil
	case nip09.IsDeletable(ev):
		return e.saveDeletion(ctx, ev)
	default:
		return e.saveProofOfWork(ctx, ev, e.policy.ProofOfWorkEnabled)
	}
}

// isDuplicate treats the cache as a hint only: the store must hold the id.
// A confirmed duplicate gets its cache marker refreshed.
func (e *Engine) isDuplicate(ctx context.Context, id string) (bool, error) {
	hit, err := e.dedupe.Seen(ctx, id)
	if err != nil {
		e.log.Warn("Dedupe cache lookup failed, asking the store", logging.Fields{"event": id, "error": err})
	}
	e.metrics.CacheLookup(hit)

	stored, err := e.store.SelectByID(ctx, id)
	if err != nil {
		return false, err
	}
	if stored == nil {
		if hit {
			e.log.Debug("Stale dedupe cache entry", logging.Fields{"event": id})
		}
		return false, nil
	}

	if err := e.dedupe.MarkDuplicate(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) saveNormal(ctx context.Context, ev *nostr.Event) (Outcome, error) {
	ok, err := e.store.SaveEvent(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return rejected(MsgSaveFailed), nil
	}
	return accepted(""), nil
}

func (e *Engine) saveDeletion(ctx context.Context, ev *nostr.Event) (Outcome, error) {
	deleted, msg, err := e.deleter.DeleteEvent(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}
	if !deleted {
		return rejected(msg), nil
	}

	ok, err := e.store.SaveEvent(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return rejected(MsgSaveAfterDeletion), nil
	}
	return accepted(msg), nil
}

func (e *Engine) saveProofOfWork(ctx context.Context, ev *nostr.Event, enabled bool) (Outcome, error) {
	if nip13.IsProofOfWorkEvent(ev) {
		bits := nip13.Difficulty(ev)
		e.metrics.Difficulty(bits)
		e.log.Debug("Proof of work event", logging.Fields{"event": ev.ID, "difficulty": bits})
	}

	valid, msg := e.work.VerifyProofOfWork(ev, enabled)
	if !valid {
		return rejected(msg), nil
	}

	ok, err := e.store.SaveEvent(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return rejected(MsgSaveProofOfWork), nil
	}
	return accepted(""), nil
}
