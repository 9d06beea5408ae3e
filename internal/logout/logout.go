// Package logout coordinates an acknowledged logout racing a short timer.
package logout

import (
	"log/slog"
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// DefaultAckTimeout bounds the wait for the service's logout acknowledgement.
const DefaultAckTimeout = 500 * time.Millisecond

// Connection is the part of the supervisor the coordinator uses.
type Connection interface {
	IsReady() bool
	EmitWithAck(kind protocol.Kind, payload any, ack func(protocol.Frame)) error
	Disconnect()
}

// Reason says what ended a logout.
type Reason string

const (
	ReasonAck      Reason = "ack"
	ReasonTimeout  Reason = "timeout"
	ReasonOffline  Reason = "offline"
	ReasonSendFail Reason = "send-failed"
)

// Coordinator runs at most one logout at a time. All methods must be called
// on the loop.
type Coordinator struct {
	loop       *loop.Loop
	conn       Connection
	timeout    time.Duration
	onFinalize func(Reason)

	inProgress bool
	attempt    int
	timer      *loop.Timer
}

// New creates a coordinator. onFinalize runs after the transport is closed
// and should clear the session and everything derived from it.
func New(l *loop.Loop, conn Connection, timeout time.Duration, onFinalize func(Reason)) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &Coordinator{
		loop:       l,
		conn:       conn,
		timeout:    timeout,
		onFinalize: onFinalize,
	}
}

// InProgress reports whether a logout is waiting for its outcome.
func (c *Coordinator) InProgress() bool { return c.inProgress }

// Logout starts a logout. Calls while one is in progress are ignored.
func (c *Coordinator) Logout() {
	if c.inProgress {
		slog.Debug("logout already in progress")
		return
	}
	c.inProgress = true
	c.attempt++
	attempt := c.attempt

	if !c.conn.IsReady() {
		c.finalize(attempt, ReasonOffline)
		return
	}

	err := c.conn.EmitWithAck(protocol.KindLogout, struct{}{}, func(f protocol.Frame) {
		var ack protocol.LogoutAck
		if err := f.Decode(&ack); err != nil {
			slog.Warn("logout ack malformed", "error", err)
		}
		slog.Debug("logout acknowledged", "success", ack.Success)
		c.finalize(attempt, ReasonAck)
	})
	if err != nil {
		slog.Warn("logout not sent", "error", err)
		c.finalize(attempt, ReasonSendFail)
		return
	}

	c.timer = c.loop.AfterFunc(c.timeout, "logout-timeout", func() {
		c.finalize(attempt, ReasonTimeout)
	})
}

// finalize completes attempt exactly once; later callers for the same or an
// older attempt are ignored.
func (c *Coordinator) finalize(attempt int, reason Reason) {
	if !c.inProgress || attempt != c.attempt {
		return
	}
	c.timer.Stop()
	c.timer = nil

	c.conn.Disconnect()
	if c.onFinalize != nil {
		c.onFinalize(reason)
	}
	c.inProgress = false
	slog.Info("logout finalized", "reason", reason)
}
