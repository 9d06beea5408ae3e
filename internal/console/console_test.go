package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamp15/elpatio-appCajeros/internal/client"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

type call struct {
	name   string
	args   []string
	amount protocol.Minor
	reject verify.RejectInput
}

type fakeActions struct {
	calls []call
	snap  client.Snapshot
	err   error
}

func (f *fakeActions) add(c call) { f.calls = append(f.calls, c) }

func (f *fakeActions) Login(email, password string) {
	f.add(call{name: "login", args: []string{email, password}})
}
func (f *fakeActions) Refresh()                 { f.add(call{name: "refresh"}) }
func (f *fakeActions) VerifyFromList(id string) { f.add(call{name: "open", args: []string{id}}) }
func (f *fakeActions) SubmitObserved(id string, observed protocol.Minor) {
	f.add(call{name: "observed", args: []string{id}, amount: observed})
}
func (f *fakeActions) SubmitAdjustment(id string, amount protocol.Minor, reason string) {
	f.add(call{name: "adjust", args: []string{id, reason}, amount: amount})
}
func (f *fakeActions) Confirm(id string) { f.add(call{name: "confirm", args: []string{id}}) }
func (f *fakeActions) Reject(id string, in verify.RejectInput) {
	f.add(call{name: "reject", args: []string{id}, reject: in})
}
func (f *fakeActions) ReferToAdmin(id, description string) {
	f.add(call{name: "refer", args: []string{id, description}})
}
func (f *fakeActions) Logout() { f.add(call{name: "logout"}) }
func (f *fakeActions) Snapshot(context.Context) (client.Snapshot, error) {
	return f.snap, f.err
}

func newShell(format string) (*Shell, *fakeActions, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	actions := &fakeActions{}
	return NewShell(actions, NewView(buf, format)), actions, buf
}

func TestShell_Commands(t *testing.T) {
	s, actions, _ := newShell(FormatText)
	ctx := context.Background()

	lines := []string{
		"login caja@elpatio.com secreto",
		"refresh",
		"open tx1",
		"observed tx1 45,50",
		"adjust tx1 40.00 el banco mostró otro monto",
		"confirm tx1",
		"refer tx1 monto dudoso",
		"logout",
	}
	for _, l := range lines {
		quit, err := s.Execute(ctx, l)
		require.NoError(t, err, l)
		require.False(t, quit)
	}

	require.Len(t, actions.calls, len(lines))
	assert.Equal(t, []string{"caja@elpatio.com", "secreto"}, actions.calls[0].args)
	assert.Equal(t, protocol.Minor(4550), actions.calls[3].amount)
	assert.Equal(t, protocol.Minor(4000), actions.calls[4].amount)
	assert.Equal(t, "el banco mostró otro monto", actions.calls[4].args[1])
	assert.Equal(t, "monto dudoso", actions.calls[6].args[1])
}

func TestShell_RejectWithEvidence(t *testing.T) {
	s, actions, _ := newShell(FormatText)
	s.ReadFile = func(path string) ([]byte, error) {
		assert.Equal(t, "/tmp/comprobante.png", path)
		return []byte("png"), nil
	}

	_, err := s.Execute(context.Background(), "reject tx1 @/tmp/comprobante.png referencia no existe")
	require.NoError(t, err)

	require.Len(t, actions.calls, 1)
	in := actions.calls[0].reject
	assert.Equal(t, "referencia no existe", in.Reason)
	require.NotNil(t, in.Evidence)
	assert.Equal(t, "comprobante.png", in.Evidence.Filename)
	assert.Empty(t, in.Evidence.ContentType)
}

func TestShell_RejectWithoutEvidence(t *testing.T) {
	s, actions, _ := newShell(FormatText)

	_, err := s.Execute(context.Background(), "reject tx1 monto incorrecto")
	require.NoError(t, err)
	require.Len(t, actions.calls, 1)
	assert.Nil(t, actions.calls[0].reject.Evidence)
	assert.Equal(t, "monto incorrecto", actions.calls[0].reject.Reason)
}

func TestShell_Errors(t *testing.T) {
	s, actions, _ := newShell(FormatText)
	s.ReadFile = func(string) ([]byte, error) { return nil, errors.New("no such file") }
	ctx := context.Background()

	_, err := s.Execute(ctx, "login solo-email")
	assert.ErrorIs(t, err, ErrUsage)

	_, err = s.Execute(ctx, "observed tx1 abc")
	assert.ErrorIs(t, err, protocol.ErrInvalidAmount)

	_, err = s.Execute(ctx, "reject tx1 @falta.png")
	assert.ErrorIs(t, err, ErrUsage)

	_, err = s.Execute(ctx, "reject tx1 @falta.png motivo")
	assert.ErrorContains(t, err, "no such file")

	_, err = s.Execute(ctx, "bailar")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	assert.Empty(t, actions.calls)
}

func TestShell_RunStopsOnQuit(t *testing.T) {
	s, actions, buf := newShell(FormatText)
	in := strings.NewReader("refresh\n\nnope\nquit\nrefresh\n")

	require.NoError(t, s.Run(context.Background(), in))

	assert.Len(t, actions.calls, 1)
	assert.Contains(t, buf.String(), "! unknown command")
}

func TestShell_Status(t *testing.T) {
	s, actions, buf := newShell(FormatText)
	actions.snap = client.Snapshot{Connected: true, Pending: 1}

	_, err := s.Execute(context.Background(), "status")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"connected": true`)
	assert.Contains(t, buf.String(), `"pending_operations": 1`)
}

func TestView_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewView(buf, FormatText)

	v.PromptVerification(verify.Transaction{
		ID:        "tx1",
		PlayerID:  "p1",
		Requested: 5000,
		Payment:   protocol.PaymentDetails{Banco: "Banesco", Referencia: "0001"},
	})
	v.Notify(notice.Notice{Level: notice.LevelSuccess, Title: "Listo", Message: "ok", Critical: true})
	v.MarkNew("tx2")

	out := buf.String()
	assert.Contains(t, out, "[verificar] tx1  Jugador p1  "+protocol.FormatAmount(5000))
	assert.Contains(t, out, "banco=Banesco ref=0001")
	assert.Contains(t, out, "✓! Listo: ok")
	assert.Contains(t, out, "* nueva: tx2")
}

func TestView_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewView(buf, FormatJSON)

	v.Alert("Error: No autorizado")
	v.ShowTransactions([]protocol.TransactionSummary{{ID: "tx1", Monto: 100}})

	dec := json.NewDecoder(buf)
	var first, second Line
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "alert", first.Event)
	assert.Equal(t, "Error: No autorizado", first.Message)
	assert.Equal(t, "transactions", second.Event)
}

func TestView_DisabledClearedOnLogin(t *testing.T) {
	v := NewView(&bytes.Buffer{}, FormatText)

	v.SetActionsDisabled("tx1", true)
	assert.True(t, v.Disabled("tx1"))
	v.ShowLogin()
	assert.False(t, v.Disabled("tx1"))
}
