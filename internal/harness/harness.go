package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/client"
	"github.com/iamp15/elpatio-appCajeros/internal/journal"
	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/session"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
	"github.com/iamp15/elpatio-appCajeros/internal/testutil"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

const (
	defaultEmail    = "caja@elpatio.com"
	defaultPassword = "secreto"
	defaultToken    = "tok-harness"
	defaultCashier  = "c1"
	defaultMinimum  = "10"
)

// pngHeader stands in for rejection evidence.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// Harness holds one client wired to in-memory fakes, a manual clock and an
// in-memory journal.
type Harness struct {
	loop     *loop.Loop
	clock    *testutil.ManualClock
	tr       *testutil.FakeTransport
	backend  *testutil.FakeBackend
	sessions *session.Store
	sup      *supervisor.Supervisor
	client   *client.Client
	journal  *journal.Journal
	trace    *tracer
}

// New builds a harness for opts. Close it when done.
func New(opts Options) (*Harness, error) {
	minimum, err := protocol.ParseDisplay(orDefault(opts.Minimum, defaultMinimum))
	if err != nil {
		return nil, fmt.Errorf("options.minimum: %w", err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}

	l, clk := testutil.NewLoop()
	h := &Harness{
		loop:     l,
		clock:    clk,
		tr:       &testutil.FakeTransport{AutoAccept: !opts.ManualConnect},
		sessions: session.NewStore(clk.Now),
		journal:  j,
		trace:    newTracer(),
		backend: &testutil.FakeBackend{
			Minimum:   minimum,
			UploadURL: "https://cdn.elpatio.test/rechazos/evidencia.png",
			LoginResult: protocol.LoginResult{
				Token: defaultToken,
				Cashier: protocol.Cashier{
					ID:             orDefault(opts.Cashier, defaultCashier),
					Email:          defaultEmail,
					NombreCompleto: "Caja Principal",
				},
			},
			Details: map[string]protocol.TransactionDetail{},
		},
	}
	if opts.MinimumUnavailable {
		h.backend.MinimumErr = errors.New("minimum deposit unavailable")
	}
	if opts.UploadFails {
		h.backend.UploadErr = errors.New("upload rejected")
	}

	ctx := context.Background()
	rec := journal.NewRecorder(ctx, j, l, h.sessions.ID)
	h.sup = supervisor.New(l, h.tr, h.sessions,
		supervisor.WithNotifier(h.trace),
		supervisor.WithObserver(observers{h.trace, rec}),
		supervisor.WithIDGenerator(testutil.NewSequentialIDs("")),
	)
	h.client = client.New(client.Deps{
		Loop:       l,
		Supervisor: h.sup,
		Sessions:   h.sessions,
		Backend:    h.backend,
		View:       h.trace,
		Notifier:   h.trace,
		Journal:    rec,
		IsUnauthorized: func(err error) bool {
			return errors.Is(err, testutil.ErrUnauthorized)
		},
		Context: ctx,
	}, client.DefaultConfig())
	h.client.Init()
	return h, nil
}

// Close releases the journal.
func (h *Harness) Close() error {
	h.loop.Settle()
	return h.journal.Close()
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh fakes and a fresh in-memory journal.
// Execution flow:
// 1. Build the client and its fakes from the scenario options
// 2. Execute flow steps, settling the loop after each
// 3. Capture trace, sent frames and final state
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	h, err := New(scenario.Options)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	for i, step := range scenario.Flow {
		if err := h.Do(step); err != nil {
			return nil, fmt.Errorf("flow step %d (%s): %w", i, step.Step, err)
		}
		slog.Debug("flow step completed", "scenario", scenario.Name, "step", i, "kind", step.Step)
	}

	result, err := h.Result()
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Journal: h.journal,
		Ctx:     context.Background(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// Do executes one step and settles the loop.
func (h *Harness) Do(st FlowStep) error {
	switch st.Step {
	case StepLogin:
		h.client.Login(orDefault(st.Email, defaultEmail), orDefault(st.Password, defaultPassword))
	case StepResume:
		h.client.Resume(st.Token, protocol.Cashier{})
	case StepAccept:
		h.tr.Accept()
	case StepDeliver:
		frame, err := newFrame(st)
		if err != nil {
			return err
		}
		h.tr.DeliverFrame(frame)
	case StepAck:
		var payload any
		if st.Payload != nil {
			payload = st.Payload
		}
		if !h.tr.Ack(protocol.Kind(st.Kind), payload) {
			return fmt.Errorf("no %s frame awaiting acknowledgement", st.Kind)
		}
	case StepDrop:
		h.tr.Drop(st.Reason)
	case StepAdvance:
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return err
		}
		testutil.Drive(h.loop, h.clock, d)
		return nil
	case StepRefresh:
		h.client.Refresh()
	case StepRevokeToken:
		h.backend.Set(func(b *testutil.FakeBackend) { b.PendingErr = testutil.ErrUnauthorized })
	case StepObserved:
		amount, err := protocol.ParseDisplay(st.Amount)
		if err != nil {
			return err
		}
		h.client.SubmitObserved(st.ID, amount)
	case StepAdjust:
		amount, err := protocol.ParseDisplay(st.Amount)
		if err != nil {
			return err
		}
		h.client.SubmitAdjustment(st.ID, amount, st.Reason)
	case StepConfirm:
		h.client.Confirm(st.ID)
	case StepReject:
		in := verify.RejectInput{Reason: st.Reason}
		if st.Evidence != "" {
			in.Evidence = &protocol.Evidence{Filename: st.Evidence, Data: pngHeader}
		}
		h.client.Reject(st.ID, in)
	case StepRefer:
		h.client.ReferToAdmin(st.ID, st.Reason)
	case StepLogout:
		h.client.Logout()
	default:
		return fmt.Errorf("unknown step %q", st.Step)
	}
	h.loop.Settle()
	return nil
}

// Result captures the trace and final state so far.
func (h *Harness) Result() (*Result, error) {
	h.loop.Settle()
	result := NewResult()
	result.Trace = append(result.Trace, h.trace.events...)
	result.Sent = h.tr.Sent()
	result.Opens = h.tr.Opens()

	state, err := normalize(h.client.Inspect())
	if err != nil {
		return nil, fmt.Errorf("capture state: %w", err)
	}
	m, _ := state.(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}
	m["session_active"] = h.sessions.Active()
	m["uploads"] = float64(len(h.backend.Uploads()))
	result.State = m
	return result, nil
}

func newFrame(st FlowStep) (protocol.Frame, error) {
	if st.Payload == nil {
		return protocol.NewFrame(protocol.Kind(st.Kind), nil)
	}
	return protocol.NewFrame(protocol.Kind(st.Kind), st.Payload)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
