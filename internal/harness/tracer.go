package harness

import (
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

// tracer is the client's view, notifier and frame observer during a run.
// Everything it sees happens on the loop, so it needs no locking.
//
// List renders, new-item markers and control locks are left out of the
// trace: they follow list reloads whose completion order is not
// deterministic.
type tracer struct {
	seq    int64
	events []TraceEvent
}

func newTracer() *tracer {
	return &tracer{}
}

func (t *tracer) add(e TraceEvent) {
	t.seq++
	e.Seq = t.seq
	t.events = append(t.events, e)
}

func (t *tracer) Inbound(f protocol.Frame) {
	t.add(TraceEvent{Type: EventIn, Name: string(f.Type), TransactionID: protocol.TransactionIDOf(f.Payload)})
}

func (t *tracer) Outbound(f protocol.Frame) {
	t.add(TraceEvent{Type: EventOut, Name: string(f.Type), TransactionID: protocol.TransactionIDOf(f.Payload)})
}

func (t *tracer) Notify(n notice.Notice) {
	t.add(TraceEvent{Type: EventNotice, Name: string(n.Level), TransactionID: n.TransactionID, Text: n.Title})
}

func (t *tracer) PromptVerification(tx verify.Transaction) {
	t.add(TraceEvent{Type: EventView, Name: "prompt-verification", TransactionID: tx.ID})
}

func (t *tracer) PromptAdjustment(tx verify.Transaction) {
	t.add(TraceEvent{Type: EventView, Name: "prompt-adjustment", TransactionID: tx.ID})
}

func (t *tracer) RequireRejection(tx verify.Transaction) {
	t.add(TraceEvent{Type: EventView, Name: "require-rejection", TransactionID: tx.ID})
}

func (t *tracer) CloseVerification(id string) {
	t.add(TraceEvent{Type: EventView, Name: "close-verification", TransactionID: id})
}

func (t *tracer) SetActionsDisabled(string, bool) {}

func (t *tracer) Alert(message string) {
	t.add(TraceEvent{Type: EventAlert, Text: message})
}

func (t *tracer) ShowTransactions([]protocol.TransactionSummary) {}

func (t *tracer) MarkNew(string) {}

func (t *tracer) ShowLogin() {
	t.add(TraceEvent{Type: EventView, Name: "login"})
}

func (t *tracer) ShowDashboard(c protocol.Cashier) {
	t.add(TraceEvent{Type: EventView, Name: "dashboard", Text: c.ID})
}

// observers fans frames out to several observers.
type observers []supervisor.Observer

func (o observers) Inbound(f protocol.Frame) {
	for _, x := range o {
		x.Inbound(f)
	}
}

func (o observers) Outbound(f protocol.Frame) {
	for _, x := range o {
		x.Outbound(f)
	}
}
