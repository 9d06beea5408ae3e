package logout_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamp15/elpatio-appCajeros/internal/logout"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/testutil"
)

type fakeConn struct {
	ready       bool
	emitErr     error
	emitted     []protocol.Kind
	ack         func(protocol.Frame)
	disconnects int
}

func (c *fakeConn) IsReady() bool { return c.ready }

func (c *fakeConn) EmitWithAck(kind protocol.Kind, _ any, ack func(protocol.Frame)) error {
	if c.emitErr != nil {
		return c.emitErr
	}
	c.emitted = append(c.emitted, kind)
	c.ack = ack
	return nil
}

func (c *fakeConn) Disconnect() { c.disconnects++ }

func newCoordinator(conn *fakeConn) (*logout.Coordinator, *[]logout.Reason, *testutil.ManualClock, func(time.Duration)) {
	l, clk := testutil.NewLoop()
	var reasons []logout.Reason
	c := logout.New(l, conn, 0, func(r logout.Reason) {
		reasons = append(reasons, r)
	})
	drive := func(d time.Duration) { testutil.Drive(l, clk, d) }
	return c, &reasons, clk, drive
}

func ackFrame(t *testing.T) protocol.Frame {
	t.Helper()
	f, err := protocol.NewFrame(protocol.KindAck, protocol.LogoutAck{Success: true})
	require.NoError(t, err)
	f.RequestID = "req-1"
	return f
}

func TestLogout_AckFinalizesAndStopsTimer(t *testing.T) {
	conn := &fakeConn{ready: true}
	c, reasons, clk, drive := newCoordinator(conn)

	c.Logout()
	require.True(t, c.InProgress())
	assert.Equal(t, []protocol.Kind{protocol.KindLogout}, conn.emitted)
	assert.Equal(t, 1, clk.Pending())

	conn.ack(ackFrame(t))

	assert.False(t, c.InProgress())
	assert.Equal(t, []logout.Reason{logout.ReasonAck}, *reasons)
	assert.Equal(t, 1, conn.disconnects)
	assert.Zero(t, clk.Pending())

	drive(time.Second)
	assert.Len(t, *reasons, 1)
}

func TestLogout_TimeoutFinalizes(t *testing.T) {
	conn := &fakeConn{ready: true}
	c, reasons, _, drive := newCoordinator(conn)

	c.Logout()
	drive(499 * time.Millisecond)
	assert.True(t, c.InProgress())

	drive(time.Millisecond)
	assert.False(t, c.InProgress())
	assert.Equal(t, []logout.Reason{logout.ReasonTimeout}, *reasons)

	// A late ack belongs to a finished attempt.
	conn.ack(ackFrame(t))
	assert.Len(t, *reasons, 1)
	assert.Equal(t, 1, conn.disconnects)
}

func TestLogout_IgnoredWhileInProgress(t *testing.T) {
	conn := &fakeConn{ready: true}
	c, reasons, _, drive := newCoordinator(conn)

	c.Logout()
	c.Logout()
	assert.Len(t, conn.emitted, 1)

	drive(time.Second)
	assert.Len(t, *reasons, 1)
}

func TestLogout_OfflineFinalizesImmediately(t *testing.T) {
	conn := &fakeConn{}
	c, reasons, clk, _ := newCoordinator(conn)

	c.Logout()

	assert.False(t, c.InProgress())
	assert.Empty(t, conn.emitted)
	assert.Equal(t, []logout.Reason{logout.ReasonOffline}, *reasons)
	assert.Equal(t, 1, conn.disconnects)
	assert.Zero(t, clk.Pending())
}

func TestLogout_SendFailureFinalizesImmediately(t *testing.T) {
	conn := &fakeConn{ready: true, emitErr: errors.New("closed")}
	c, reasons, clk, _ := newCoordinator(conn)

	c.Logout()

	assert.False(t, c.InProgress())
	assert.Equal(t, []logout.Reason{logout.ReasonSendFail}, *reasons)
	assert.Zero(t, clk.Pending())
}

func TestLogout_CanRunAgainAfterFinalize(t *testing.T) {
	conn := &fakeConn{ready: true}
	c, reasons, _, drive := newCoordinator(conn)

	c.Logout()
	drive(time.Second)
	c.Logout()
	conn.ack(ackFrame(t))

	assert.Equal(t, []logout.Reason{logout.ReasonTimeout, logout.ReasonAck}, *reasons)
	assert.Equal(t, 2, conn.disconnects)
}
