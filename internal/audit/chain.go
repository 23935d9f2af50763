// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// IntegrityChain links events into an append-only hash chain. Each event's
// digest incorporates the previous event's digest, so altering or deleting
// a past event is detectable.
//
// The chain pointer is owned by one Service instance and mutated only by
// Link. Callers serialize Link invocations with the buffer-append critical
// section; the chain performs no locking of its own.
type IntegrityChain struct {
	lastHash string
}

// NewIntegrityChain returns a chain with no predecessor. The first linked
// event carries an empty previous hash.
func NewIntegrityChain() *IntegrityChain {
	return &IntegrityChain{}
}

// Link computes the event's digest against the current chain head, stamps
// EventHash and PreviousHash on the event, and advances the head. No two
// events linked through the same chain observe the same previous hash.
func (c *IntegrityChain) Link(event *Event) {
	event.PreviousHash = c.lastHash
	event.EventHash = computeEventHash(event)
	c.lastHash = event.EventHash
}

// Head returns the hash of the most recently linked event, or "" if no
// event has been linked.
func (c *IntegrityChain) Head() string {
	return c.lastHash
}

// Verify recomputes a stored event's digest from its canonical fields and
// reports whether it matches the stored EventHash.
func Verify(event *Event) bool {
	return computeEventHash(event) == event.EventHash
}

// VerifyChain walks events in chain order and returns the index of the
// first event whose digest or previous-hash link is broken, or -1 if the
// chain is intact. The first event is only checked for self-consistency;
// no independent chain check is possible for it.
func VerifyChain(events []Event) int {
	for i := range events {
		if !Verify(&events[i]) {
			return i
		}
		if i > 0 && events[i].PreviousHash != events[i-1].EventHash {
			return i
		}
	}
	return -1
}

// computeEventHash digests the canonical subset of event fields plus the
// previous hash. Field order is fixed; timestamps are rendered in UTC
// RFC3339Nano so recomputation from stored fields is deterministic.
func computeEventHash(event *Event) string {
	h := sha256.New()
	for _, field := range []string{
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		string(event.Type),
		event.ActorID,
		event.Action,
		event.TargetID,
		string(event.Result),
		event.PreviousHash,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
