package supervisor

import (
	"context"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Transport is a persistent bidirectional frame connection.
type Transport interface {
	// Open starts connecting and returns immediately. The outcome is reported
	// through sink: Connected once established, Closed on failure or when the
	// connection later drops.
	Open(ctx context.Context, sink Sink)
	// Send writes one frame on the open connection.
	Send(f protocol.Frame) error
	// Close tears the connection down. Closed is not reported for a
	// connection closed by the caller.
	Close() error
}

// Sink receives transport callbacks. Methods may be called from any
// goroutine.
type Sink interface {
	Connected()
	Received(f protocol.Frame)
	Closed(reason string)
}

// Observer sees every frame crossing the connection, on the loop.
type Observer interface {
	Inbound(f protocol.Frame)
	Outbound(f protocol.Frame)
}

// IDGenerator produces request ids for acknowledged emits.
type IDGenerator interface {
	Generate() string
}
