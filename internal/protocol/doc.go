// Package protocol defines the wire contract between the cashier client and
// the payments realtime service.
//
// Every message travels in a JSON Frame envelope:
//
//	{"type": "<kind>", "request_id": "<optional>", "payload": {...}}
//
// Kinds are a closed enum (Kind). Field names inside payloads follow the
// service's JSON vocabulary (transaccionId, jugadorId, monto, ...) and are
// mapped to Go structs here so no other package touches raw JSON.
//
// Amounts are integer minor units (Minor) on the wire. Conversion to display
// units happens only when text is produced for a person (Minor.Display,
// FormatAmount).
package protocol
