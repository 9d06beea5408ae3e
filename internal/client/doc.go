// Package client is the cashier client core. A Client owns every component of
// one running client (connection supervisor, deduplicator, verification
// engine, logout coordinator) and wires them to the inbound event kinds.
//
// All state lives on the event loop. The exported entry points are safe to
// call from any goroutine: they post onto the loop and report their outcome
// through the View and the Notifier.
package client
