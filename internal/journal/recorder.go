package journal

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Recorder journals frames and local decisions of the current session.
// Entries are stamped on the loop and written off it.
type Recorder struct {
	journal *Journal
	loop    *loop.Loop
	seq     sequencer
	session func() string
	ctx     context.Context
}

// NewRecorder creates a recorder. session returns the id of the current
// session; nothing is written while it returns "".
func NewRecorder(ctx context.Context, j *Journal, l *loop.Loop, session func() string) *Recorder {
	return &Recorder{
		journal: j,
		loop:    l,
		session: session,
		ctx:     ctx,
	}
}

// Inbound journals a received frame.
func (r *Recorder) Inbound(f protocol.Frame) {
	r.record(FromFrame(DirectionIn, f))
}

// Outbound journals a sent frame.
func (r *Recorder) Outbound(f protocol.Frame) {
	r.record(FromFrame(DirectionOut, f))
}

// Local journals a client-side decision such as a state transition.
func (r *Recorder) Local(kind, transactionID string, detail any) {
	payload := json.RawMessage(`{}`)
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			slog.Warn("journal detail not encodable", "kind", kind, "error", err)
		} else {
			payload = raw
		}
	}
	r.record(Entry{
		Direction:     DirectionLocal,
		Kind:          kind,
		TransactionID: transactionID,
		Payload:       payload,
	})
}

func (r *Recorder) record(e Entry) {
	if r == nil || r.journal == nil {
		return
	}
	e.SessionID = r.session()
	if e.SessionID == "" {
		return
	}
	e.Seq = r.seq.next(e.SessionID)
	e.RecordedAt = r.loop.Now()

	r.loop.Go("journal-append", func() {
		if err := r.journal.Append(r.ctx, e); err != nil {
			slog.Warn("journal append failed", "kind", e.Kind, "seq", e.Seq, "error", err)
		}
	}, nil)
}
