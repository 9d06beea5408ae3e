package harness

import (
	"fmt"
	"strings"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Trace event types.
const (
	EventOut    = "out"
	EventIn     = "in"
	EventAlert  = "alert"
	EventNotice = "notice"
	EventView   = "view"
)

// TraceEvent is one observable effect of the client, in the order it
// happened.
type TraceEvent struct {
	Seq           int64  `json:"seq"`
	Type          string `json:"type"`
	Name          string `json:"name,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Text          string `json:"text,omitempty"`
}

// String renders the event as one golden line.
func (e TraceEvent) String() string {
	parts := []string{fmt.Sprintf("%03d", e.Seq), e.Type}
	for _, p := range []string{e.Name, e.TransactionID, e.Text} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every frame, alert, notice and prompt in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final client snapshot.
	State map[string]any `json:"state,omitempty"`

	// Sent holds every frame written to the transport.
	Sent []protocol.Frame `json:"-"`

	// Opens counts connection attempts.
	Opens int `json:"opens"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the trace events of type typ.
func (r *Result) Events(typ string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
