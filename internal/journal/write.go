package journal

import (
	"context"
	"fmt"
)

// Append writes e. A repeated (session, seq) pair is ignored.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.SessionID == "" {
		return fmt.Errorf("append: empty session id")
	}
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO entries
		(session_id, seq, direction, kind, request_id, transaction_id, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		e.SessionID,
		e.Seq,
		string(e.Direction),
		e.Kind,
		e.RequestID,
		e.TransactionID,
		payload,
		e.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}
