// Package supervisor keeps the cashier's realtime connection established and
// authenticated, and routes inbound protocol events to per-kind handlers.
//
// The Supervisor is the only owner of connection state (connected,
// authenticated, the transport handle). Other components read it through
// accessors and send through Emit / EmitWithAck, which refuse to write on a
// connection that is not usable.
//
// All methods must be called on the event loop. Transport callbacks arrive on
// the transport's goroutines and are posted to the loop before touching any
// state; callbacks from a connection that was already closed are dropped.
//
// Reconnection policy is deliberately narrow: Connect never retries on its
// own. AuthenticateWithRetry re-checks the connection on a fixed delay for a
// bounded number of attempts and then gives up with a user notice.
package supervisor
