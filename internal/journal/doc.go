// Package journal is an append-only SQLite log of everything a cashier
// session sent, received and decided.
//
// Every entry belongs to one session id and carries a seq numbered from 1
// within that session. Session reads order by seq, never by wall time, so a
// trace reads back in the order the loop saw it. Transaction reads span
// sessions and order by recorded time first.
//
// # Database Configuration
//
//   - WAL mode: the trace command can read while a client writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// Session tokens are never stored: authentication payloads are redacted
// before they are written.
package journal
