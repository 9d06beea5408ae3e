// Package harness runs scripted scenarios against a cashier client wired to
// in-memory fakes.
//
// A scenario logs in, feeds frames from a fake realtime service, performs
// cashier actions and advances a manual clock. The harness records every
// frame sent or received, every alert, notice and prompt, and the final
// client snapshot, then checks the scenario's assertions.
//
// # Scenario Format
//
//	name: confirm_single_flight
//	description: "A second confirm while the first is in flight sends nothing"
//	options:
//	  minimum: "10"
//	flow:
//	  - step: login
//	  - step: deliver
//	    kind: auth-result
//	    payload: { success: true }
//	  - step: confirm
//	    id: t1
//	  - step: advance
//	    duration: 30s
//	assertions:
//	  - type: sent_count
//	    kind: confirmar-pago-cajero
//	    count: 1
//	  - type: final_state
//	    expect: { pending_operations: 0 }
//
// # Assertion Types
//
//   - sent_count: frames of a kind sent exactly N times
//   - sent_contains: a frame of a kind whose payload contains the given fields
//   - sent_order: kinds first sent in the given order
//   - alert_contains: an alert with the exact text was shown
//   - notice_count: N notices of a level were raised
//   - final_state: the client snapshot matches the given fields
//   - transport_opens: the transport was opened N times
//   - journal_count: N journal rows match the given columns
//
// # Deterministic Testing
//
// Every step settles the event loop before the next one starts, and time only
// moves on advance steps, so traces are identical across runs and can be
// compared against golden files. Each run uses:
//   - A manual clock starting at a fixed epoch
//   - Sequential acknowledgement request ids
//   - An in-memory SQLite journal
package harness
