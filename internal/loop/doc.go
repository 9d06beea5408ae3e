// Package loop provides the single-threaded cooperative scheduler the client
// runs on.
//
// Every inbound protocol event, timer firing and user action is posted to the
// loop as a task and executed to completion before the next one starts. State
// owned by the client components is therefore only ever touched from the loop
// goroutine and needs no locking.
//
// Suspension points are explicit:
//   - AfterFunc schedules a cancellable timer whose firing is posted back.
//   - Go runs blocking work (network, disk) off the loop and posts the
//     continuation back.
//
// Thread-safety model:
//   - Post, Go, AfterFunc, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - RunPending, Settle: drive the loop from the calling goroutine (tests,
//     scenario harness); never mix with a concurrent Run
package loop
