package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
)

// ErrTransportClosed is returned by FakeTransport.Send without an open
// connection.
var ErrTransportClosed = errors.New("fake transport: not open")

// FakeTransport is an in-memory supervisor.Transport. Nothing happens on its
// own: tests decide when a connection is accepted, refused or dropped, and
// which frames arrive. Callbacks go straight to the sink, which posts them to
// the loop.
//
// Thread-safety: safe for concurrent use.
type FakeTransport struct {
	mu sync.Mutex

	// AutoAccept reports Connected from within Open.
	AutoAccept bool
	// AutoRefuse reports Closed from within Open.
	AutoRefuse bool
	// FailSend makes every Send fail.
	FailSend bool

	sink   supervisor.Sink
	open   bool
	opens  int
	closes int
	sent   []protocol.Frame
}

// Open records the attempt and keeps the sink for later callbacks.
func (f *FakeTransport) Open(_ context.Context, sink supervisor.Sink) {
	f.mu.Lock()
	f.opens++
	f.sink = sink
	accept, refuse := f.AutoAccept, f.AutoRefuse
	if accept {
		f.open = true
	}
	f.mu.Unlock()

	switch {
	case accept:
		sink.Connected()
	case refuse:
		sink.Closed("connection refused")
	}
}

// Send records the frame.
func (f *FakeTransport) Send(frame protocol.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.FailSend {
		return ErrTransportClosed
	}
	f.sent = append(f.sent, frame)
	return nil
}

// Close marks the connection closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return nil
}

// Accept completes the pending connection attempt.
func (f *FakeTransport) Accept() {
	f.mu.Lock()
	sink := f.sink
	f.open = true
	f.mu.Unlock()
	if sink != nil {
		sink.Connected()
	}
}

// Refuse fails the pending connection attempt.
func (f *FakeTransport) Refuse() {
	f.Drop("connection refused")
}

// Drop closes the connection from the remote side.
func (f *FakeTransport) Drop(reason string) {
	f.mu.Lock()
	sink := f.sink
	f.open = false
	f.mu.Unlock()
	if sink != nil {
		sink.Closed(reason)
	}
}

// Deliver pushes an inbound message of kind with payload.
func (f *FakeTransport) Deliver(kind protocol.Kind, payload any) {
	frame, err := protocol.NewFrame(kind, payload)
	if err != nil {
		panic(err)
	}
	f.DeliverFrame(frame)
}

// DeliverRaw pushes an inbound message whose payload is raw JSON.
func (f *FakeTransport) DeliverRaw(kind protocol.Kind, payload string) {
	f.DeliverFrame(protocol.Frame{Type: kind, Payload: json.RawMessage(payload)})
}

// DeliverFrame pushes an inbound frame.
func (f *FakeTransport) DeliverFrame(frame protocol.Frame) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.Received(frame)
	}
}

// Ack acknowledges the most recent sent frame of kind. Returns false when
// there is none.
func (f *FakeTransport) Ack(kind protocol.Kind, payload any) bool {
	frame, ok := f.LastSent(kind)
	if !ok || frame.RequestID == "" {
		return false
	}
	ack, err := protocol.NewFrame(protocol.KindAck, payload)
	if err != nil {
		panic(err)
	}
	ack.RequestID = frame.RequestID
	f.DeliverFrame(ack)
	return true
}

// Opens returns how many times Open was called.
func (f *FakeTransport) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Closes returns how many times Close was called.
func (f *FakeTransport) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// IsOpen reports whether the fake connection is open.
func (f *FakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Sent returns every frame sent so far.
func (f *FakeTransport) Sent() []protocol.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Frame, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentKinds returns the kinds of every sent frame, in order.
func (f *FakeTransport) SentKinds() []protocol.Kind {
	sent := f.Sent()
	kinds := make([]protocol.Kind, len(sent))
	for i, fr := range sent {
		kinds[i] = fr.Type
	}
	return kinds
}

// SentCount returns how many frames of kind were sent.
func (f *FakeTransport) SentCount(kind protocol.Kind) int {
	n := 0
	for _, fr := range f.Sent() {
		if fr.Type == kind {
			n++
		}
	}
	return n
}

// LastSent returns the most recent frame of kind.
func (f *FakeTransport) LastSent(kind protocol.Kind) (protocol.Frame, bool) {
	sent := f.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].Type == kind {
			return sent[i], true
		}
	}
	return protocol.Frame{}, false
}
