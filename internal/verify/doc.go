// Package verify drives each transaction from the verification prompt to a
// terminal outcome.
//
// # State machine
//
//	NEW ─► VERIFYING ─┬─► CONFIRMING ──────────────┐
//	                  ├─► ADJUSTING ─► AWAITING_ACK ─► CONFIRMING
//	                  └─► REJECTING ───────────────┤
//	                                               ▼
//	                         COMPLETED | REJECTED (server driven)
//
// Any non-terminal state may move to CANCELLED when the player cancels or the
// service times the transaction out.
//
// # Amount policy
//
// The cashier enters the amount observed in the bank:
//   - equal to the requested amount: confirm directly
//   - below the minimum deposit: rejection is the only way forward
//   - otherwise: adjust to the observed amount, then exactly one confirm once
//     the service acknowledges the adjustment
//
// # Single flight
//
// At most one PendingOperation exists per transaction. It is checked and set
// within one loop task, so no second operation can slip in between. Every
// failure path releases it and re-enables the cashier's controls. Once a
// transaction is resolved it enters the CompletedSet and every later event or
// action for it is discarded.
//
// The Engine runs on the event loop; none of its methods are safe for
// concurrent use.
package verify
