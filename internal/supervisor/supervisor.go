package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/session"
)

const (
	// DefaultRetryAttempts bounds AuthenticateWithRetry.
	DefaultRetryAttempts = 10
	// DefaultRetryDelay is the fixed delay between authentication retries.
	DefaultRetryDelay = 2 * time.Second
)

// ReasonClientDisconnect is the disconnect reason when the client itself
// closed the connection.
const ReasonClientDisconnect = "client disconnect"

const (
	msgConnectFailedTitle = "Error de conexión"
	msgConnectFailed      = "No se pudo conectar con el servidor. Inicia sesión nuevamente."
)

var tracer = otel.Tracer("github.com/iamp15/elpatio-appCajeros/internal/supervisor")

// Handler consumes one inbound event on the loop.
type Handler func(ev protocol.Event)

// State is a snapshot of the connection.
type State struct {
	Connecting    bool
	Connected     bool
	Authenticated bool
	// Generation increments every time a connection attempt starts or is
	// torn down.
	Generation int
}

// Supervisor owns the connection lifecycle.
type Supervisor struct {
	loop      *loop.Loop
	transport Transport
	sessions  *session.Store
	notifier  notice.Notifier
	observer  Observer
	ids       IDGenerator
	ctx       context.Context

	retryAttempts int
	retryDelay    time.Duration

	gen           int
	connecting    bool
	connected     bool
	authenticated bool

	handlers map[protocol.Kind][]Handler
	acks     map[string]func(protocol.Frame)
	retry    *loop.Timer
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithRetry overrides the authentication retry bound and delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Supervisor) {
		s.retryAttempts = attempts
		s.retryDelay = delay
	}
}

// WithNotifier sets where user-visible connection failures go.
func WithNotifier(n notice.Notifier) Option {
	return func(s *Supervisor) {
		s.notifier = n
	}
}

// WithObserver attaches a frame observer (journal).
func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observer = o
	}
}

// WithIDGenerator replaces the UUIDv7 request id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Supervisor) {
		s.ids = g
	}
}

// WithContext sets the context transports are opened with.
func WithContext(ctx context.Context) Option {
	return func(s *Supervisor) {
		s.ctx = ctx
	}
}

// New creates a disconnected supervisor.
func New(l *loop.Loop, t Transport, sessions *session.Store, opts ...Option) *Supervisor {
	s := &Supervisor{
		loop:          l,
		transport:     t,
		sessions:      sessions,
		notifier:      notice.Log{},
		ids:           UUIDv7Generator{},
		ctx:           context.Background(),
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		handlers:      make(map[protocol.Kind][]Handler),
		acks:          make(map[string]func(protocol.Frame)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On registers h for kind. Handlers run in registration order.
func (s *Supervisor) On(kind protocol.Kind, h Handler) {
	s.handlers[kind] = append(s.handlers[kind], h)
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State{
		Connecting:    s.connecting,
		Connected:     s.connected,
		Authenticated: s.authenticated,
		Generation:    s.gen,
	}
}

// IsConnected reports whether the transport is established.
func (s *Supervisor) IsConnected() bool { return s.connected }

// IsAuthenticated reports whether the service accepted the session token.
func (s *Supervisor) IsAuthenticated() bool { return s.authenticated }

// IsReady reports whether session messages can be emitted.
func (s *Supervisor) IsReady() bool { return s.connected && s.authenticated }

// RetryPending reports whether an authentication retry is scheduled.
func (s *Supervisor) RetryPending() bool { return s.retry.Active() }

// Connect starts the transport unless it is already connected or connecting.
// A failed attempt is logged; Connect never retries by itself.
func (s *Supervisor) Connect() {
	if s.connected || s.connecting {
		return
	}
	s.gen++
	s.connecting = true
	slog.Info("connecting", "generation", s.gen)
	s.transport.Open(s.ctx, &sink{s: s, gen: s.gen})
}

// Disconnect closes the transport and forgets pending acknowledgements.
func (s *Supervisor) Disconnect() {
	s.CancelRetry()
	if !s.connected && !s.connecting {
		return
	}
	wasConnected := s.connected
	s.reset()
	if err := s.transport.Close(); err != nil {
		slog.Warn("closing transport", "error", err)
	}
	slog.Info("disconnected", "generation", s.gen)
	if wasConnected {
		s.dispatchLocal(protocol.KindDisconnect, protocol.Disconnect{Reason: ReasonClientDisconnect})
	}
}

// CancelRetry stops a scheduled authentication retry.
func (s *Supervisor) CancelRetry() {
	s.retry.Stop()
	s.retry = nil
}

// Authenticate sends the token on the established connection.
func (s *Supervisor) Authenticate(token string) error {
	if !s.connected {
		return ErrNotConnected
	}
	return s.send(protocol.KindAuthenticate, protocol.Authenticate{Token: token}, "")
}

// AuthenticateWithRetry authenticates the live session as soon as the
// connection allows it. When not connected it triggers Connect and re-checks
// every retry delay; after the retry bound is exhausted the cashier is told
// and nothing further is attempted.
func (s *Supervisor) AuthenticateWithRetry() {
	s.CancelRetry()
	s.authAttempt(0)
}

func (s *Supervisor) authAttempt(n int) {
	s.retry = nil

	token := s.sessions.Token()
	if token == "" {
		slog.Debug("authentication retry abandoned: no session")
		return
	}

	if s.connected {
		if err := s.Authenticate(token); err != nil {
			slog.Warn("authenticate", "error", err)
		}
		return
	}

	s.Connect()

	if n >= s.retryAttempts {
		slog.Error("giving up on authentication", "retries", n)
		s.notifier.Notify(notice.Error(msgConnectFailedTitle, msgConnectFailed))
		return
	}

	slog.Info("not connected, retrying authentication",
		"retry", n+1,
		"max", s.retryAttempts,
		"delay", s.retryDelay,
	)
	s.retry = s.loop.AfterFunc(s.retryDelay, "auth-retry", func() {
		s.authAttempt(n + 1)
	})
}

// Emit sends a session message. The connection must be authenticated.
func (s *Supervisor) Emit(kind protocol.Kind, payload any) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.send(kind, payload, "")
}

// EmitWithAck sends a session message and calls ack, on the loop, when the
// service acknowledges it. ack is never called if the connection drops first.
func (s *Supervisor) EmitWithAck(kind protocol.Kind, payload any, ack func(protocol.Frame)) error {
	if err := s.usable(); err != nil {
		return err
	}
	id := s.ids.Generate()
	s.acks[id] = ack
	if err := s.send(kind, payload, id); err != nil {
		delete(s.acks, id)
		return err
	}
	return nil
}

func (s *Supervisor) usable() error {
	if !s.connected {
		return ErrNotConnected
	}
	if !s.authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

func (s *Supervisor) send(kind protocol.Kind, payload any, requestID string) error {
	frame, err := protocol.NewFrame(kind, payload)
	if err != nil {
		return err
	}
	frame.RequestID = requestID

	_, span := tracer.Start(s.ctx, "emit "+string(kind),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("protocol.kind", string(kind)),
			attribute.String("transaction.id", protocol.TransactionIDOf(frame.Payload)),
		),
	)
	defer span.End()

	if err := s.transport.Send(frame); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("send %s: %w", kind, err)
	}

	if s.observer != nil {
		s.observer.Outbound(frame)
	}
	slog.Debug("emitted", "kind", kind, "request_id", requestID)
	return nil
}

func (s *Supervisor) reset() {
	s.gen++
	s.connecting = false
	s.connected = false
	s.authenticated = false
	s.sessions.MarkAuthenticated(false)
	if len(s.acks) > 0 {
		slog.Debug("dropping pending acknowledgements", "count", len(s.acks))
		s.acks = make(map[string]func(protocol.Frame))
	}
}

func (s *Supervisor) onConnected(gen int) {
	if gen != s.gen || !s.connecting {
		slog.Debug("ignoring stale connect", "generation", gen)
		return
	}
	s.connecting = false
	s.connected = true
	s.CancelRetry()
	slog.Info("connected", "generation", gen)

	if token := s.sessions.Token(); token != "" {
		if err := s.Authenticate(token); err != nil {
			slog.Warn("authenticate on connect", "error", err)
		}
	}
	s.dispatchLocal(protocol.KindConnect, nil)
}

func (s *Supervisor) onClosed(gen int, reason string) {
	if gen != s.gen {
		slog.Debug("ignoring stale close", "generation", gen, "reason", reason)
		return
	}
	wasConnected := s.connected
	s.reset()

	if !wasConnected {
		slog.Warn("connect failed", "reason", reason)
		return
	}
	slog.Warn("connection lost", "reason", reason)
	s.dispatchLocal(protocol.KindDisconnect, protocol.Disconnect{Reason: reason})
}

func (s *Supervisor) onFrame(gen int, f protocol.Frame) {
	if gen != s.gen || !s.connected {
		slog.Debug("ignoring frame from stale connection", "kind", f.Type)
		return
	}
	if s.observer != nil {
		s.observer.Inbound(f)
	}

	switch f.Type {
	case protocol.KindAck:
		ack, ok := s.acks[f.RequestID]
		if !ok {
			slog.Debug("unmatched ack", "request_id", f.RequestID)
			return
		}
		delete(s.acks, f.RequestID)
		ack(f)
		return

	case protocol.KindConnect, protocol.KindDisconnect:
		slog.Warn("ignoring locally reserved kind from remote", "kind", f.Type)
		return

	case protocol.KindAuthResult:
		var res protocol.AuthResult
		if err := f.Decode(&res); err != nil {
			slog.Warn("malformed auth result", "error", err)
			return
		}
		s.authenticated = res.Success
		s.sessions.MarkAuthenticated(res.Success)
		if res.Success {
			slog.Info("authenticated")
		} else {
			slog.Error("authentication rejected", "message", res.Message)
		}

	case protocol.KindSessionReplaced:
		slog.Warn("session replaced by another login")
		s.Disconnect()
	}

	if !f.Type.IsInbound() {
		slog.Warn("ignoring unknown kind", "kind", f.Type)
		return
	}
	s.dispatch(protocol.EventFromFrame(f))
}

func (s *Supervisor) dispatchLocal(kind protocol.Kind, payload any) {
	ev := protocol.Event{Kind: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Error("marshal local event", "kind", kind, "error", err)
			return
		}
		ev.Payload = raw
	}
	s.dispatch(ev)
}

func (s *Supervisor) dispatch(ev protocol.Event) {
	handlers := s.handlers[ev.Kind]
	if len(handlers) == 0 {
		slog.Debug("no handler", "kind", ev.Kind)
		return
	}
	for _, h := range handlers {
		h(ev)
	}
}

// sink binds transport callbacks to the connection generation that opened
// them.
type sink struct {
	s   *Supervisor
	gen int
}

func (k *sink) Connected() {
	k.s.loop.Post("transport-connected", func() { k.s.onConnected(k.gen) })
}

func (k *sink) Received(f protocol.Frame) {
	k.s.loop.Post("frame "+string(f.Type), func() { k.s.onFrame(k.gen, f) })
}

func (k *sink) Closed(reason string) {
	k.s.loop.Post("transport-closed", func() { k.s.onClosed(k.gen, reason) })
}
