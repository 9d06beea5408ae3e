package journal

import (
	"encoding/json"
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Direction says where an entry came from.
type Direction string

const (
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionLocal Direction = "local"
)

// Entry is one journal row.
type Entry struct {
	SessionID     string
	Seq           int64
	Direction     Direction
	Kind          string
	RequestID     string
	TransactionID string
	Payload       json.RawMessage
	RecordedAt    time.Time
}

// SessionInfo summarizes one journaled session.
type SessionInfo struct {
	ID      string
	Entries int
	First   time.Time
	Last    time.Time
}

var redactedAuth = json.RawMessage(`{"token":"[redacted]"}`)

// FromFrame builds an entry for a frame crossing the connection.
func FromFrame(dir Direction, f protocol.Frame) Entry {
	payload := f.Payload
	if f.Type == protocol.KindAuthenticate {
		payload = redactedAuth
	}
	return Entry{
		Direction:     dir,
		Kind:          string(f.Type),
		RequestID:     f.RequestID,
		TransactionID: protocol.TransactionIDOf(f.Payload),
		Payload:       payload,
	}
}
