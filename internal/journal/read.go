package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ReadSession returns every entry of a session ordered by seq. Returns an
// empty slice when the session is unknown.
func (j *Journal) ReadSession(ctx context.Context, sessionID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT session_id, seq, direction, kind, request_id, transaction_id, payload, recorded_at
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// ReadTransaction returns every entry that references a transaction id,
// across sessions.
func (j *Journal) ReadTransaction(ctx context.Context, transactionID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT session_id, seq, direction, kind, request_id, transaction_id, payload, recorded_at
		FROM entries
		WHERE transaction_id = ?
		ORDER BY recorded_at ASC, session_id COLLATE BINARY ASC, seq ASC
	`, transactionID)
}

// LastSeq returns the highest seq recorded for a session, 0 when none.
func (j *Journal) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM entries WHERE session_id = ?`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// Sessions lists journaled sessions, most recent first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MIN(recorded_at), MAX(recorded_at)
		FROM entries
		GROUP BY session_id
		ORDER BY MAX(recorded_at) DESC, session_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionInfo{}
	for rows.Next() {
		var (
			info        SessionInfo
			first, last int64
		)
		if err := rows.Scan(&info.ID, &info.Entries, &first, &last); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.First = time.UnixMilli(first).UTC()
		info.Last = time.UnixMilli(last).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			dir        string
			payload    string
			recordedAt int64
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &dir, &e.Kind, &e.RequestID, &e.TransactionID, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Direction = Direction(dir)
		e.Payload = json.RawMessage(payload)
		e.RecordedAt = time.UnixMilli(recordedAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// Query runs a read-only query against the journal. Callers close the rows.
func (j *Journal) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return j.db.QueryContext(ctx, query, args...)
}
