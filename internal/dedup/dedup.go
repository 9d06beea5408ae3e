// Package dedup admits new-transaction announcements exactly once per
// session.
//
// The realtime service may announce the same transaction more than once (on
// reconnect, or when it is broadcast to several rooms). The Deduplicator keeps
// every key it has admitted and refuses repeats until Reset at session end.
// There is no eviction: a session handles a bounded number of transactions.
package dedup

import (
	"fmt"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Key identifies an announcement.
//
// Announcements carrying a transaction id are keyed by it. Early
// announcements without one are keyed by (counterparty, amount). The two
// forms live in separate namespaces: a fallback key never equals an id key,
// even when the id happens to spell the same characters.
type Key struct {
	value    string
	fallback bool
}

// IDKey keys an announcement by its transaction id.
func IDKey(transactionID string) Key {
	return Key{value: transactionID}
}

// FallbackKey keys an announcement that has no transaction id. Two requests
// from the same player for the same amount collapse into one key.
func FallbackKey(counterpartyID string, amount protocol.Minor) Key {
	return Key{value: fmt.Sprintf("%s_%d", counterpartyID, int64(amount)), fallback: true}
}

// KeyFor derives the key of a new deposit request.
func KeyFor(req protocol.NewDepositRequest) Key {
	if req.TransaccionID != "" {
		return IDKey(req.TransaccionID)
	}
	return FallbackKey(req.JugadorID, req.Monto)
}

// Fallback reports whether k was derived without a transaction id.
func (k Key) Fallback() bool { return k.fallback }

func (k Key) String() string {
	if k.fallback {
		return "fallback:" + k.value
	}
	return "id:" + k.value
}

// Deduplicator holds the ProcessedSet.
//
// It is owned by the event loop; methods are not safe for concurrent use.
type Deduplicator struct {
	seen map[Key]struct{}
}

// New creates an empty deduplicator.
func New() *Deduplicator {
	return &Deduplicator{seen: make(map[Key]struct{})}
}

// Admit returns true the first time k is seen and records it; every later
// call with the same key returns false.
func (d *Deduplicator) Admit(k Key) bool {
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Seen reports whether k was admitted, without recording it.
func (d *Deduplicator) Seen(k Key) bool {
	_, ok := d.seen[k]
	return ok
}

// Len returns the number of admitted keys.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// Reset clears the ProcessedSet. Called only at session end.
func (d *Deduplicator) Reset() {
	d.seen = make(map[Key]struct{})
}
