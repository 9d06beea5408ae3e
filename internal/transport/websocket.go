// Package transport implements the realtime connection over WebSocket.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
)

// ErrNotOpen is returned by Send without an open connection.
var ErrNotOpen = errors.New("websocket: not open")

// DefaultDialTimeout bounds a single connection attempt.
const DefaultDialTimeout = 10 * time.Second

// WebSocket is a supervisor.Transport carrying JSON frames, one frame per
// WebSocket text message.
//
// Thread-safety: Open, Send and Close are safe for concurrent use. Each open
// connection has one reader goroutine that feeds the sink.
type WebSocket struct {
	url         string
	origin      string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	// gen is bumped by every Open and Close. A dial that completes under an
	// older gen belongs to nobody and is closed unreported.
	gen    uint64
	cancel context.CancelFunc
}

var _ supervisor.Transport = (*WebSocket)(nil)

// NewWebSocket creates a transport for url. origin is sent in the handshake;
// dialTimeout <= 0 selects DefaultDialTimeout.
func NewWebSocket(url, origin string, dialTimeout time.Duration) *WebSocket {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &WebSocket{url: url, origin: origin, dialTimeout: dialTimeout}
}

// Open dials in the background and reports the outcome to sink. Nothing is
// reported for an attempt that Close or a later Open superseded.
func (w *WebSocket) Open(ctx context.Context, sink supervisor.Sink) {
	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.gen++
	gen := w.gen
	w.cancel = cancel
	w.mu.Unlock()

	go func() {
		conn, err := w.dial(ctx)
		if err != nil {
			if !w.publish(gen, nil) {
				slog.Debug("websocket dial abandoned", "url", w.url, "error", err)
				return
			}
			slog.Warn("websocket dial failed", "url", w.url, "error", err)
			sink.Closed(err.Error())
			return
		}
		if !w.publish(gen, conn) {
			slog.Debug("websocket dial completed after close, dropping", "url", w.url)
			_ = conn.Close()
			return
		}

		sink.Connected()
		w.read(conn, sink)
	}()
}

// publish stores conn as the open connection when gen is still current.
func (w *WebSocket) publish(gen uint64, conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return false
	}
	if conn != nil {
		w.conn = conn
	}
	return true
}

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(w.url, w.origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, w.dialTimeout)
	defer cancel()
	return cfg.DialContext(ctx)
}

func (w *WebSocket) read(conn *websocket.Conn, sink supervisor.Sink) {
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if !w.current(conn) {
				// Closed by us.
				return
			}
			w.clear(conn)
			sink.Closed(err.Error())
			return
		}

		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("dropping malformed frame", "error", err, "bytes", len(data))
			continue
		}
		sink.Received(f)
	}
}

// Send writes f as one text message.
func (w *WebSocket) Send(f protocol.Frame) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}
	if err := websocket.JSON.Send(conn, f); err != nil {
		return fmt.Errorf("websocket send: %w", err)
	}
	return nil
}

// Close closes the open connection, if any, and abandons a dial in flight.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (w *WebSocket) current(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn == conn
}

func (w *WebSocket) clear(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == conn {
		w.conn = nil
	}
}
