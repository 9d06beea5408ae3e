package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is the JSON envelope every message travels in.
type Frame struct {
	Type      Kind            `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals payload into a frame of the given kind.
// A nil payload produces an empty object.
func NewFrame(kind Kind, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: kind, Payload: json.RawMessage(`{}`)}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Frame{Type: kind, Payload: raw}, nil
}

// Decode unmarshals the frame payload into v. An absent payload leaves v
// untouched.
func (f Frame) Decode(v any) error {
	if len(f.Payload) == 0 || string(f.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Type, err)
	}
	return nil
}

// Event is an inbound message as seen by handlers.
type Event struct {
	Kind    Kind
	Payload json.RawMessage
}

// EventFromFrame converts a received frame.
func EventFromFrame(f Frame) Event {
	return Event{Kind: f.Type, Payload: f.Payload}
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return Frame{Type: e.Kind, Payload: e.Payload}.Decode(v)
}

// TransactionIDOf extracts transaccionId from a raw payload, or "" when the
// payload has none. Used for journaling and logging only.
func TransactionIDOf(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var probe struct {
		TransaccionID string `json:"transaccionId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.TransaccionID
}
