package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/dedup"
	"github.com/iamp15/elpatio-appCajeros/internal/logout"
	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/session"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

// ErrStopped is returned by Snapshot when the loop no longer accepts work.
var ErrStopped = errors.New("client: loop stopped")

// View is everything the client drives on screen.
type View interface {
	verify.View
	ShowTransactions(list []protocol.TransactionSummary)
	MarkNew(id string)
	ShowLogin()
	ShowDashboard(cashier protocol.Cashier)
}

// Backend is the REST API.
type Backend interface {
	Login(ctx context.Context, email, password string) (protocol.LoginResult, error)
	PendingTransactions(ctx context.Context, token string) ([]protocol.TransactionSummary, error)
	TransactionDetail(ctx context.Context, token, id string) (protocol.TransactionDetail, error)
	MinimumDeposit(ctx context.Context) (protocol.Minor, error)
	UploadEvidence(ctx context.Context, token string, ev protocol.Evidence) (string, error)
}

// Journal records client-side decisions.
type Journal interface {
	Local(kind, transactionID string, detail any)
}

// Unauthorized reports whether a backend error means the token is no longer
// accepted.
type Unauthorized func(err error) bool

// Deps are the collaborators of a Client.
type Deps struct {
	Loop       *loop.Loop
	Supervisor *supervisor.Supervisor
	Sessions   *session.Store
	Backend    Backend
	View       View
	Notifier   notice.Notifier
	// Journal is optional.
	Journal Journal
	// IsUnauthorized classifies backend errors. Optional.
	IsUnauthorized Unauthorized
	Context        context.Context
}

// Config holds the client's timeouts.
type Config struct {
	Verify        verify.Config
	LogoutTimeout time.Duration
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		Verify:        verify.DefaultConfig(),
		LogoutTimeout: logout.DefaultAckTimeout,
	}
}

// Client is the context object of one running cashier client.
type Client struct {
	loop     *loop.Loop
	sup      *supervisor.Supervisor
	sessions *session.Store
	backend  Backend
	view     View
	notifier notice.Notifier
	journal  Journal
	unauth   Unauthorized
	ctx      context.Context

	engine *verify.Engine
	dedup  *dedup.Deduplicator
	logout *logout.Coordinator

	tokenMu sync.RWMutex
	token   string

	initialized bool
	expiry      *loop.Timer
	// refreshSeq drops list responses overtaken by a newer reload.
	refreshSeq int
	newMarks   []string
}

// New builds a client. Call Init before the loop runs.
func New(d Deps, cfg Config) *Client {
	c := &Client{
		loop:     d.Loop,
		sup:      d.Supervisor,
		sessions: d.Sessions,
		backend:  d.Backend,
		view:     d.View,
		notifier: d.Notifier,
		journal:  d.Journal,
		unauth:   d.IsUnauthorized,
		ctx:      d.Context,
		dedup:    dedup.New(),
	}
	if c.notifier == nil {
		c.notifier = notice.Log{}
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.unauth == nil {
		c.unauth = func(error) bool { return false }
	}
	c.engine = verify.New(c.loop, c.sup, c.view, c.notifier,
		verify.WithConfig(cfg.Verify),
		verify.WithMinimumSource(c.backend),
		verify.WithUploader(tokenUploader{c}),
		verify.WithContext(c.ctx),
	)
	c.logout = logout.New(c.loop, c.sup, cfg.LogoutTimeout, c.finalizeLogout)
	return c
}

// Init registers one handler per inbound kind. It must run before the loop
// starts; later calls are no-ops.
func (c *Client) Init() {
	if c.initialized {
		return
	}
	c.initialized = true
	for kind, h := range c.handlers() {
		c.sup.On(kind, h)
	}
	slog.Debug("client initialized")
}

// Teardown drops the session and closes the connection without a remote
// logout. It must run on the loop or after the loop has stopped.
func (c *Client) Teardown() {
	c.teardownLocal()
	slog.Info("client torn down")
}

// Engine exposes the verification engine for status reporting and tests.
func (c *Client) Engine() *verify.Engine { return c.engine }

// Snapshot is a point-in-time view of the client.
type Snapshot struct {
	Connecting       bool             `json:"connecting"`
	Connected        bool             `json:"connected"`
	Authenticated    bool             `json:"authenticated"`
	RetryPending     bool             `json:"retry_pending"`
	LogoutInProgress bool             `json:"logout_in_progress"`
	SessionID        string           `json:"session_id,omitempty"`
	Cashier          protocol.Cashier `json:"cashier"`
	Pending          int              `json:"pending_operations"`
	Resolved         int              `json:"resolved_transactions"`
	Processed        int              `json:"processed_requests"`
}

// Snapshot reads the client state on the loop.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	if !c.loop.Post("snapshot", func() { ch <- c.snapshot() }) {
		return Snapshot{}, ErrStopped
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Inspect reads the client state directly. It must run on the loop or while
// the loop is idle.
func (c *Client) Inspect() Snapshot { return c.snapshot() }

func (c *Client) snapshot() Snapshot {
	st := c.sup.State()
	s := Snapshot{
		Connecting:       st.Connecting,
		Connected:        st.Connected,
		Authenticated:    st.Authenticated,
		RetryPending:     c.sup.RetryPending(),
		LogoutInProgress: c.logout.InProgress(),
		Pending:          c.engine.PendingCount(),
		Resolved:         c.engine.ResolvedCount(),
		Processed:        c.dedup.Len(),
	}
	if sess, ok := c.sessions.Current(); ok {
		s.SessionID = sess.ID
		s.Cashier = sess.Cashier
	}
	return s
}

func (c *Client) setToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

// currentToken may be called off the loop.
func (c *Client) currentToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *Client) record(kind, transactionID string, detail any) {
	if c.journal != nil {
		c.journal.Local(kind, transactionID, detail)
	}
}

// tokenUploader adds the session token to evidence uploads, which run off
// the loop.
type tokenUploader struct {
	c *Client
}

func (u tokenUploader) UploadEvidence(ctx context.Context, ev protocol.Evidence) (string, error) {
	return u.c.backend.UploadEvidence(ctx, u.c.currentToken(), ev)
}
