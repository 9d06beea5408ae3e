package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamp15/elpatio-appCajeros/internal/journal"
)

// seedJournal writes two sessions to a journal file and returns its path.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []journal.Entry{
		{SessionID: "s-1", Seq: 1, Direction: journal.DirectionOut, Kind: "autenticar-cajero", RequestID: "req-1", RecordedAt: base},
		{SessionID: "s-1", Seq: 2, Direction: journal.DirectionIn, Kind: "solicitud-deposito", TransactionID: "tx-9",
			Payload: json.RawMessage(`{"transaccionId":"tx-9","monto":4500}`), RecordedAt: base.Add(time.Second)},
		{SessionID: "s-1", Seq: 3, Direction: journal.DirectionLocal, Kind: "pending-operation", TransactionID: "tx-9", RecordedAt: base.Add(2 * time.Second)},
		{SessionID: "s-1", Seq: 4, Direction: journal.DirectionOut, Kind: "confirmar-pago-cajero", RequestID: "req-2", TransactionID: "tx-9", RecordedAt: base.Add(3 * time.Second)},
		{SessionID: "s-2", Seq: 1, Direction: journal.DirectionOut, Kind: "autenticar-cajero", RequestID: "req-1", RecordedAt: base.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, j.Append(context.Background(), e))
	}
	return path
}

func runTraceCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceNonExistentJournal(t *testing.T) {
	_, err := runTraceCmd(t, "text", "--journal", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceSessionAndTransactionExclusive(t *testing.T) {
	path := seedJournal(t)
	_, err := runTraceCmd(t, "text", "--journal", path, "--session", "s-1", "--transaction", "tx-9")
	require.Error(t, err)
}

func TestTraceListSessions(t *testing.T) {
	path := seedJournal(t)

	out, err := runTraceCmd(t, "text", "--journal", path)
	require.NoError(t, err)

	s1 := bytes.Index([]byte(out), []byte("s-1"))
	s2 := bytes.Index([]byte(out), []byte("s-2"))
	require.NotEqual(t, -1, s1)
	require.NotEqual(t, -1, s2)
	assert.Less(t, s2, s1, "most recent session first")
	assert.Contains(t, out, "4 entries")
}

func TestTraceListSessionsJSON(t *testing.T) {
	path := seedJournal(t)

	out, err := runTraceCmd(t, "json", "--journal", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []SessionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "s-2", resp.Data[0].ID)
	assert.Equal(t, 4, resp.Data[1].Entries)
}

func TestTraceSession(t *testing.T) {
	path := seedJournal(t)

	out, err := runTraceCmd(t, "text", "--journal", path, "--session", "s-1")
	require.NoError(t, err)

	assert.Contains(t, out, "→ autenticar-cajero")
	assert.Contains(t, out, "← solicitud-deposito [tx-9]")
	assert.Contains(t, out, "· pending-operation [tx-9]")
	assert.Contains(t, out, `"monto":4500`)
	assert.Contains(t, out, "Entries: 4 (in 1, out 2, local 1)")
}

func TestTraceSessionKindFilter(t *testing.T) {
	path := seedJournal(t)

	out, err := runTraceCmd(t, "text", "--journal", path, "--session", "s-1", "--kind", "confirmar-pago-cajero")
	require.NoError(t, err)

	assert.Contains(t, out, "confirmar-pago-cajero")
	assert.NotContains(t, out, "autenticar-cajero")
	assert.Contains(t, out, "Entries: 1 (in 0, out 1, local 0)")
}

func TestTraceUnknownSession(t *testing.T) {
	path := seedJournal(t)

	out, err := runTraceCmd(t, "text", "--journal", path, "--session", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries found")
}

func TestTraceTransactionJSON(t *testing.T) {
	path := seedJournal(t)

	out, err := runTraceCmd(t, "json", "--journal", path, "--transaction", "tx-9")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "tx-9", resp.Data.TransactionID)
	require.Len(t, resp.Data.Entries, 3)
	assert.Equal(t, "solicitud-deposito", resp.Data.Entries[0].Kind)
	assert.Equal(t, "confirmar-pago-cajero", resp.Data.Entries[2].Kind)
	assert.Equal(t, TraceStats{Total: 3, Inbound: 1, Outbound: 1, Local: 1}, resp.Data.Stats)
}

func TestBuildTrace(t *testing.T) {
	entries := []journal.Entry{
		{SessionID: "s", Seq: 1, Direction: journal.DirectionIn, Kind: "a"},
		{SessionID: "s", Seq: 2, Direction: journal.DirectionOut, Kind: "b"},
	}

	all := buildTrace(entries, "")
	assert.Equal(t, 2, all.Stats.Total)

	only := buildTrace(entries, "b")
	require.Len(t, only.Entries, 1)
	assert.Equal(t, int64(2), only.Entries[0].Seq)

	none := buildTrace(nil, "")
	assert.NotNil(t, none.Entries)
	assert.Empty(t, none.Entries)
}

func TestFormatEntry(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 15, 250*int(time.Millisecond), time.UTC)

	line := formatEntry(TraceEntry{Seq: 7, Direction: "out", Kind: "cerrar-sesion", RecordedAt: at, Payload: json.RawMessage(`{}`)})
	assert.Equal(t, "    7 09:30:15.250 → cerrar-sesion", line)

	line = formatEntry(TraceEntry{Seq: 8, Direction: "in", Kind: "deposito-completado", TransactionID: "tx", RecordedAt: at, Payload: json.RawMessage(`{"ok":true}`)})
	assert.Equal(t, `    8 09:30:15.250 ← deposito-completado [tx] {"ok":true}`, line)
}

func TestTraceHelpText(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	assert.Contains(t, cmd.Long, "--session")
	assert.Contains(t, cmd.Long, "--transaction")
}
