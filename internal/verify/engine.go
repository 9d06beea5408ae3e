package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Sender writes session messages on the realtime connection.
type Sender interface {
	Emit(kind protocol.Kind, payload any) error
}

// MinimumSource returns the minimum deposit currently in force.
type MinimumSource interface {
	MinimumDeposit(ctx context.Context) (protocol.Minor, error)
}

// Uploader stores rejection evidence and returns its public URL.
type Uploader interface {
	UploadEvidence(ctx context.Context, ev protocol.Evidence) (string, error)
}

// View is the part of the UI the engine drives.
type View interface {
	PromptVerification(tx Transaction)
	PromptAdjustment(tx Transaction)
	RequireRejection(tx Transaction)
	CloseVerification(id string)
	SetActionsDisabled(id string, disabled bool)
	Alert(message string)
}

// Config holds the engine's fixed timeouts and limits.
type Config struct {
	// AdjustAckGuard is how long a second adjustment acknowledgement for
	// the same transaction is ignored.
	AdjustAckGuard time.Duration
	// OperationTimeout releases a PendingOperation that never received a
	// terminal outcome. Zero disables it.
	OperationTimeout time.Duration
	// DefaultMinimum is used when the minimum deposit cannot be fetched.
	DefaultMinimum protocol.Minor
	// MaxEvidenceBytes bounds rejection evidence uploads.
	MaxEvidenceBytes int64
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		AdjustAckGuard:   10 * time.Second,
		OperationTimeout: 30 * time.Second,
		DefaultMinimum:   protocol.FromDisplay(10),
		MaxEvidenceBytes: 5 << 20,
	}
}

// Engine is the transaction verification state machine.
type Engine struct {
	loop     *loop.Loop
	sender   Sender
	view     View
	notifier notice.Notifier
	minimum  MinimumSource
	uploader Uploader
	cfg      Config
	ctx      context.Context

	txs      map[string]*Transaction
	ops      map[string]*pendingOp
	resolved map[string]State // CompletedSet
	guards   map[string]*loop.Timer
	uploads  map[string]bool
}

type pendingOp struct {
	PendingOperation
	timeout *loop.Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithMinimumSource sets where the minimum deposit is fetched from.
func WithMinimumSource(m MinimumSource) Option {
	return func(e *Engine) {
		e.minimum = m
	}
}

// WithUploader enables rejection evidence.
func WithUploader(u Uploader) Option {
	return func(e *Engine) {
		e.uploader = u
	}
}

// WithContext sets the context for network calls made off the loop.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// New creates an engine with empty state.
func New(l *loop.Loop, sender Sender, view View, notifier notice.Notifier, opts ...Option) *Engine {
	e := &Engine{
		loop:     l,
		sender:   sender,
		view:     view,
		notifier: notifier,
		cfg:      DefaultConfig(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clear()
	return e
}

func (e *Engine) clear() {
	e.txs = make(map[string]*Transaction)
	e.ops = make(map[string]*pendingOp)
	e.resolved = make(map[string]State)
	e.guards = make(map[string]*loop.Timer)
	e.uploads = make(map[string]bool)
}

// Reset drops all session state and stops every owned timer. Called at
// session end.
func (e *Engine) Reset() {
	for _, op := range e.ops {
		op.timeout.Stop()
	}
	for _, g := range e.guards {
		g.Stop()
	}
	e.clear()
	slog.Debug("verification state cleared")
}

// IsResolved reports whether id is in the CompletedSet.
func (e *Engine) IsResolved(id string) bool {
	_, ok := e.resolved[id]
	return ok
}

// Pending returns the in-flight operation of id.
func (e *Engine) Pending(id string) (PendingOperation, bool) {
	op, ok := e.ops[id]
	if !ok {
		return PendingOperation{}, false
	}
	return op.PendingOperation, true
}

// State returns the state of id; StateNew for unknown ids.
func (e *Engine) State(id string) State {
	if s, ok := e.resolved[id]; ok {
		return s
	}
	if tx, ok := e.txs[id]; ok {
		return tx.State
	}
	return StateNew
}

// Transaction returns a copy of what the engine knows about id.
func (e *Engine) Transaction(id string) (Transaction, bool) {
	tx, ok := e.txs[id]
	if !ok {
		return Transaction{}, false
	}
	return *tx, true
}

// PendingCount returns the number of in-flight operations.
func (e *Engine) PendingCount() int { return len(e.ops) }

// ResolvedCount returns the size of the CompletedSet.
func (e *Engine) ResolvedCount() int { return len(e.resolved) }

// AdjustGuardActive reports whether a second adjustment ack for id would be
// ignored.
func (e *Engine) AdjustGuardActive(id string) bool {
	return e.guards[id].Active()
}

func (e *Engine) track(id string) *Transaction {
	tx, ok := e.txs[id]
	if !ok {
		tx = &Transaction{ID: id, State: StateNew, UpdatedAt: e.loop.Now()}
		e.txs[id] = tx
	}
	return tx
}

func (e *Engine) setState(tx *Transaction, to State) error {
	if !canTransition(tx.State, to) {
		slog.Warn("invalid transition",
			"transaction", tx.ID,
			"from", tx.State,
			"to", to,
		)
		return newError(CodeInvalidTransition, tx.ID, string(tx.State)+" -> "+string(to))
	}
	slog.Debug("transition", "transaction", tx.ID, "from", tx.State, "to", to)
	tx.State = to
	tx.UpdatedAt = e.loop.Now()
	return nil
}

// acquire takes the single-flight lock of id. Returns nil when another
// operation already holds it.
func (e *Engine) acquire(id string, kind OpKind) *pendingOp {
	if held, ok := e.ops[id]; ok {
		slog.Debug("operation already in flight",
			"transaction", id,
			"held", held.Kind,
			"requested", kind,
		)
		return nil
	}
	op := &pendingOp{PendingOperation: PendingOperation{
		TransactionID: id,
		Kind:          kind,
		StartedAt:     e.loop.Now(),
	}}
	if e.cfg.OperationTimeout > 0 {
		op.timeout = e.loop.AfterFunc(e.cfg.OperationTimeout, "operation-timeout", func() {
			e.expire(op)
		})
	}
	e.ops[id] = op
	return op
}

func (e *Engine) release(id string) {
	op, ok := e.ops[id]
	if !ok {
		return
	}
	op.timeout.Stop()
	delete(e.ops, id)
}

func (e *Engine) expire(op *pendingOp) {
	id := op.TransactionID
	if e.ops[id] != op {
		return
	}
	delete(e.ops, id)
	slog.Warn("operation timed out",
		"transaction", id,
		"kind", op.Kind,
		"started", op.StartedAt,
	)
	if tx, ok := e.txs[id]; ok && !tx.State.Terminal() {
		e.revert(tx)
	}
	e.view.SetActionsDisabled(id, false)
	e.view.Alert(msgNoResponse)
}

// revert returns tx to the state the cashier can act from after a failure.
func (e *Engine) revert(tx *Transaction) {
	switch {
	case tx.RejectOnly:
		tx.State = StateRejecting
	case tx.State == StateAwaitingAdjustAck:
		tx.State = StateAdjusting
	default:
		tx.State = StateVerifying
	}
	tx.UpdatedAt = e.loop.Now()
}

// sendFailed undoes an operation whose message could not be written.
func (e *Engine) sendFailed(tx *Transaction, prev State, err error) error {
	slog.Warn("send failed", "transaction", tx.ID, "error", err)
	e.release(tx.ID)
	tx.State = prev
	e.view.SetActionsDisabled(tx.ID, false)
	e.view.Alert(msgNoConnection)
	return &Error{Code: CodeSendFailed, TransactionID: tx.ID, Message: "send", Err: err}
}

func (e *Engine) discardResolved(id, what string) error {
	slog.Warn("transaction already resolved, discarding",
		"transaction", id,
		"what", what,
		"state", e.resolved[id],
	)
	return newError(CodeAlreadyResolved, id, what)
}
