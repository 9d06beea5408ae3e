package verify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/testutil"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

type sent struct {
	kind    protocol.Kind
	payload any
}

type recordingSender struct {
	mu   sync.Mutex
	out  []sent
	fail error
}

func (s *recordingSender) Emit(kind protocol.Kind, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.out = append(s.out, sent{kind: kind, payload: payload})
	return nil
}

func (s *recordingSender) kinds() []protocol.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Kind
	for _, x := range s.out {
		out = append(out, x.kind)
	}
	return out
}

func (s *recordingSender) last() sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out[len(s.out)-1]
}

type fixedMinimum struct {
	value protocol.Minor
	err   error
}

func (m fixedMinimum) MinimumDeposit(context.Context) (protocol.Minor, error) {
	return m.value, m.err
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (u *fakeUploader) UploadEvidence(_ context.Context, _ protocol.Evidence) (string, error) {
	u.calls++
	return u.url, u.err
}

type fixture struct {
	loop     *loop.Loop
	clock    *testutil.ManualClock
	sender   *recordingSender
	view     *testutil.RecordingView
	notices  *notice.Recorder
	uploader *fakeUploader
	engine   *verify.Engine
}

func newFixture(t *testing.T, opts ...verify.Option) *fixture {
	t.Helper()
	l, clk := testutil.NewLoop()
	f := &fixture{
		loop:     l,
		clock:    clk,
		sender:   &recordingSender{},
		view:     &testutil.RecordingView{},
		notices:  &notice.Recorder{},
		uploader: &fakeUploader{url: "https://cdn.example/rechazo.png"},
	}
	opts = append([]verify.Option{
		verify.WithMinimumSource(fixedMinimum{value: protocol.FromDisplay(10)}),
		verify.WithUploader(f.uploader),
	}, opts...)
	f.engine = verify.New(l, f.sender, f.view, f.notices, opts...)
	return f
}

func (f *fixture) open(t *testing.T, id string, amount protocol.Minor) {
	t.Helper()
	ok := f.engine.OpenVerification(protocol.VerifyPaymentRequest{
		TransaccionID: id,
		Monto:         amount,
		Jugador:       protocol.Player{Nombre: "Ana"},
	})
	require.True(t, ok)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestOpenVerification_PromptsAndTracks(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	prompts := f.view.Verifications()
	require.Len(t, prompts, 1)
	assert.Equal(t, "tx1", prompts[0].ID)
	assert.Equal(t, protocol.Minor(5000), prompts[0].Requested)
	assert.Equal(t, "Ana", prompts[0].PlayerName())
	assert.Equal(t, verify.StateVerifying, f.engine.State("tx1"))
	assert.Zero(t, f.engine.PendingCount())
}

func TestOpenVerification_NoID(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.engine.OpenVerification(protocol.VerifyPaymentRequest{Monto: 100}))
	assert.Empty(t, f.view.Verifications())
}

func TestSubmitObserved_EqualAmountConfirms(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.SubmitObserved("tx1", 5000))

	assert.Equal(t, []protocol.Kind{protocol.KindConfirmPayment}, f.sender.kinds())
	payload := f.sender.last().payload.(protocol.ConfirmPayment)
	assert.Equal(t, "tx1", payload.TransaccionID)
	assert.Nil(t, payload.MontoAjustado)

	op, ok := f.engine.Pending("tx1")
	require.True(t, ok)
	assert.Equal(t, verify.OpConfirm, op.Kind)
	assert.Equal(t, testutil.Epoch, op.StartedAt)
	assert.Equal(t, verify.StateConfirming, f.engine.State("tx1"))
	assert.True(t, f.view.Disabled("tx1"))
	assert.Contains(t, f.view.Closed(), "tx1")
}

func TestSubmitObserved_Validation(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	err := f.engine.SubmitObserved("tx1", 0)
	assert.True(t, verify.IsValidation(err))

	err = f.engine.SubmitObserved("unknown", 100)
	assert.True(t, verify.IsValidation(err))

	assert.Len(t, f.view.Alerts(), 2)
	assert.Empty(t, f.sender.kinds())
}

func TestSingleFlight_SecondActionRejected(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))

	assert.True(t, verify.IsInFlight(f.engine.Confirm("tx1")))
	assert.True(t, verify.IsInFlight(f.engine.Reject("tx1", verify.RejectInput{Reason: "no llegó"})))
	assert.True(t, verify.IsInFlight(f.engine.ReferToAdmin("tx1", "revisar")))
	assert.True(t, verify.IsInFlight(f.engine.SubmitObserved("tx1", 5000)))
	assert.False(t, f.engine.OpenVerification(protocol.VerifyPaymentRequest{TransaccionID: "tx1", Monto: 5000}))

	assert.Len(t, f.sender.kinds(), 1)
	assert.Equal(t, 1, f.engine.PendingCount())
}

func TestSingleFlight_IndependentTransactions(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	f.open(t, "tx2", 7000)

	require.NoError(t, f.engine.Confirm("tx1"))
	require.NoError(t, f.engine.Confirm("tx2"))

	assert.Equal(t, 2, f.engine.PendingCount())
	assert.Len(t, f.sender.kinds(), 2)
}

func TestCompleted_DiscardsLaterEvents(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))

	done := f.engine.HandleCompleted(verify.Completion{TransactionID: "tx1", Amount: 5000, NewBalance: 15000})
	require.True(t, done)

	assert.True(t, f.engine.IsResolved("tx1"))
	assert.Equal(t, verify.StateCompleted, f.engine.State("tx1"))
	assert.Zero(t, f.engine.PendingCount())
	assert.False(t, f.view.Disabled("tx1"))

	assert.False(t, f.engine.OpenVerification(protocol.VerifyPaymentRequest{TransaccionID: "tx1", Monto: 5000}))
	assert.True(t, verify.IsAlreadyResolved(f.engine.Confirm("tx1")))
	assert.True(t, verify.IsAlreadyResolved(f.engine.Reject("tx1", verify.RejectInput{Reason: "x"})))
	assert.False(t, f.engine.HandleCompleted(verify.Completion{TransactionID: "tx1"}))
	assert.False(t, f.engine.HandleRejected(protocol.DepositRejected{TransaccionID: "tx1"}))
	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "tx1", MontoNuevo: 100})

	assert.Len(t, f.sender.kinds(), 1)
	assert.Equal(t, 1, f.notices.Count(notice.LevelSuccess))
	assert.Equal(t, 1, f.engine.ResolvedCount())
}

func TestCompleted_WithdrawalNotice(t *testing.T) {
	f := newFixture(t)

	ok := f.engine.HandleCompleted(verify.CompletionFromWithdrawal(protocol.WithdrawalCompleted{
		TransaccionID: "tx9",
		Monto:         2000,
		SaldoNuevo:    500,
	}))
	require.True(t, ok)

	n, ok := f.notices.Last()
	require.True(t, ok)
	assert.Equal(t, "Retiro completado", n.Title)
	assert.Equal(t, "tx9", n.TransactionID)
}

func TestRejected_Resolves(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	require.True(t, f.engine.HandleRejected(protocol.DepositRejected{TransaccionID: "tx1", Motivo: "monto incorrecto"}))

	assert.Equal(t, verify.StateRejected, f.engine.State("tx1"))
	n, _ := f.notices.Last()
	assert.Equal(t, notice.LevelWarning, n.Level)
	assert.Contains(t, n.Message, "monto incorrecto")
}

func TestAmountPolicy_BelowMinimumForcesRejection(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.SubmitObserved("tx1", 500))
	op, ok := f.engine.Pending("tx1")
	require.True(t, ok)
	assert.Equal(t, verify.OpVerify, op.Kind)

	f.loop.Settle()

	assert.Zero(t, f.engine.PendingCount())
	assert.Equal(t, verify.StateRejecting, f.engine.State("tx1"))
	tx, _ := f.engine.Transaction("tx1")
	assert.True(t, tx.RejectOnly)
	assert.Equal(t, protocol.FromDisplay(10), tx.Minimum)
	require.Len(t, f.view.Rejections(), 1)
	require.NotEmpty(t, f.view.Alerts())
	assert.Contains(t, f.view.Alerts()[0], "mínimo")

	err := f.engine.Confirm("tx1")
	assert.True(t, verify.IsBelowMinimum(err))
	assert.Empty(t, f.sender.kinds())

	require.NoError(t, f.engine.Reject("tx1", verify.RejectInput{Reason: "monto menor al mínimo"}))
	assert.Equal(t, []protocol.Kind{protocol.KindRejectPayment}, f.sender.kinds())
}

func TestAmountPolicy_DifferenceAboveMinimumPromptsAdjustment(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.SubmitObserved("tx1", 4000))
	f.loop.Settle()

	assert.Equal(t, verify.StateAdjusting, f.engine.State("tx1"))
	require.Len(t, f.view.Adjustments(), 1)
	assert.Equal(t, protocol.Minor(4000), f.view.Adjustments()[0].Observed)
	assert.Empty(t, f.view.Rejections())
	assert.Zero(t, f.engine.PendingCount())
	assert.Empty(t, f.sender.kinds())
}

func TestAmountPolicy_MinimumUnavailableUsesDefault(t *testing.T) {
	f := newFixture(t, verify.WithMinimumSource(fixedMinimum{err: errors.New("timeout")}))
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.SubmitObserved("tx1", 900))
	f.loop.Settle()

	tx, _ := f.engine.Transaction("tx1")
	assert.True(t, tx.RejectOnly)
	assert.Equal(t, protocol.Minor(1000), tx.Minimum)
}

func TestAdjustment_AckConfirmsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.SubmitObserved("tx1", 4000))
	f.loop.Settle()

	require.NoError(t, f.engine.SubmitAdjustment("tx1", 4000, "  "))
	assert.Equal(t, verify.StateAwaitingAdjustAck, f.engine.State("tx1"))
	adjust := f.sender.last().payload.(protocol.AdjustAmount)
	assert.Equal(t, protocol.Minor(4000), adjust.MontoReal)
	assert.Equal(t, verify.DefaultAdjustReason, adjust.Razon)

	op, _ := f.engine.Pending("tx1")
	assert.Equal(t, verify.OpAdjust, op.Kind)

	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "tx1", MontoNuevo: 4000})
	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "tx1", MontoNuevo: 4000})

	assert.Equal(t, []protocol.Kind{protocol.KindAdjustAmount, protocol.KindConfirmPayment}, f.sender.kinds())
	confirm := f.sender.last().payload.(protocol.ConfirmPayment)
	require.NotNil(t, confirm.MontoAjustado)
	assert.Equal(t, protocol.Minor(4000), *confirm.MontoAjustado)
	assert.True(t, f.engine.AdjustGuardActive("tx1"))

	testutil.Drive(f.loop, f.clock, 10*time.Second)
	assert.False(t, f.engine.AdjustGuardActive("tx1"))
}

func TestAdjustment_BelowMinimumRejected(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.SubmitObserved("tx1", 4000))
	f.loop.Settle()

	err := f.engine.SubmitAdjustment("tx1", 500, "")
	assert.True(t, verify.IsBelowMinimum(err))
	assert.Empty(t, f.sender.kinds())
	assert.Equal(t, verify.StateAdjusting, f.engine.State("tx1"))
}

func TestAdjustment_RequiresAdjustingState(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))

	err := f.engine.SubmitAdjustment("tx1", 4000, "")
	assert.True(t, verify.IsInvalidTransition(err))
}

func TestAdjustment_AckWithoutAdjustmentIgnored(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "tx1"})
	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "ghost", MontoNuevo: 100})

	assert.Empty(t, f.sender.kinds())
	assert.Equal(t, verify.StateVerifying, f.engine.State("tx1"))
	assert.False(t, f.engine.AdjustGuardActive("tx1"))
	_, known := f.engine.Transaction("ghost")
	assert.False(t, known)

	tx, _ := f.engine.Transaction("tx1")
	assert.False(t, tx.Adjusted)
}

func TestAdjustment_AckWhileCheckingMinimumIgnored(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.SubmitObserved("tx1", 4000))

	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "tx1", MontoNuevo: 4000})
	f.loop.Settle()

	assert.Empty(t, f.sender.kinds())
	assert.Equal(t, verify.StateAdjusting, f.engine.State("tx1"))
}

func TestConfirm_UnverifiedTransaction(t *testing.T) {
	f := newFixture(t)
	f.engine.Track(protocol.NewDepositRequest{TransaccionID: "tx1", JugadorID: "p1", Monto: 3000})

	assert.True(t, verify.IsInvalidTransition(f.engine.Confirm("tx1")))
	assert.True(t, verify.IsInvalidTransition(f.engine.Confirm("unknown")))
	assert.Empty(t, f.sender.kinds())
	assert.Zero(t, f.engine.PendingCount())
}

func TestConfirm_WhileAdjustingWarns(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.SubmitObserved("tx1", 4000))
	f.loop.Settle()

	err := f.engine.Confirm("tx1")
	assert.True(t, verify.IsInvalidTransition(err))
	assert.Contains(t, f.view.Alerts(), "El monto recibido no coincide. Debes ajustar el monto antes de confirmar.")
	assert.Empty(t, f.sender.kinds())
}

func TestReject_RequiresReason(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	err := f.engine.Reject("tx1", verify.RejectInput{Reason: " \t "})
	assert.True(t, verify.IsValidation(err))
	assert.Equal(t, []string{"Debes proporcionar un motivo de rechazo"}, f.view.Alerts())
	assert.Empty(t, f.sender.kinds())
	assert.Zero(t, f.engine.PendingCount())
}

func TestReject_WithoutEvidence(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.Reject("tx1", verify.RejectInput{Reason: "  no llegó  "}))

	p := f.sender.last().payload.(protocol.RejectPayment)
	assert.Equal(t, "no llegó", p.Motivo.DescripcionDetallada)
	assert.Empty(t, p.Motivo.ImagenRechazoURL)
	op, _ := f.engine.Pending("tx1")
	assert.Equal(t, verify.OpReject, op.Kind)
	assert.Zero(t, f.uploader.calls)
}

func TestReject_UploadsEvidenceFirst(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	err := f.engine.Reject("tx1", verify.RejectInput{
		Reason:   "comprobante falso",
		Evidence: &protocol.Evidence{Filename: "c.png", Data: pngHeader},
	})
	require.NoError(t, err)
	assert.Zero(t, f.engine.PendingCount())
	assert.Empty(t, f.sender.kinds())

	f.loop.Settle()

	assert.Equal(t, 1, f.uploader.calls)
	p := f.sender.last().payload.(protocol.RejectPayment)
	assert.Equal(t, "https://cdn.example/rechazo.png", p.Motivo.ImagenRechazoURL)
	assert.Equal(t, 1, f.engine.PendingCount())
}

func TestReject_UploadBlocksOtherActions(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.Reject("tx1", verify.RejectInput{
		Reason:   "comprobante falso",
		Evidence: &protocol.Evidence{Filename: "c.png", Data: pngHeader},
	}))

	err := f.engine.Confirm("tx1")
	assert.True(t, verify.IsInFlight(err), "confirm: %v", err)
	err = f.engine.ReferToAdmin("tx1", "revisar con supervisor")
	assert.True(t, verify.IsInFlight(err), "referral: %v", err)
	assert.Empty(t, f.sender.kinds())

	f.loop.Settle()

	assert.Equal(t, []protocol.Kind{protocol.KindRejectPayment}, f.sender.kinds())
	assert.Equal(t, 1, f.engine.PendingCount())
}

func TestReject_UploadFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = errors.New("413")
	f.open(t, "tx1", 5000)

	require.NoError(t, f.engine.Reject("tx1", verify.RejectInput{
		Reason:   "comprobante falso",
		Evidence: &protocol.Evidence{Filename: "c.png", ContentType: "image/png", Data: pngHeader},
	}))
	assert.True(t, f.view.Disabled("tx1"))
	f.loop.Settle()

	assert.Empty(t, f.sender.kinds())
	assert.Zero(t, f.engine.PendingCount())
	assert.False(t, f.view.Disabled("tx1"))
	assert.Equal(t, []string{"Error al subir imagen: 413"}, f.view.Alerts())

	f.uploader.err = nil
	require.NoError(t, f.engine.Reject("tx1", verify.RejectInput{Reason: "comprobante falso"}))
	assert.Len(t, f.sender.kinds(), 1)
}

func TestReject_EvidenceChecks(t *testing.T) {
	tests := []struct {
		name string
		ev   protocol.Evidence
	}{
		{"empty", protocol.Evidence{Filename: "a.png"}},
		{"too large", protocol.Evidence{Filename: "a.png", ContentType: "image/png", Data: make([]byte, 5<<20+1)}},
		{"pdf", protocol.Evidence{Filename: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}},
		{"sniffed text", protocol.Evidence{Filename: "a", Data: []byte("hola")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.open(t, "tx1", 5000)
			ev := tt.ev

			err := f.engine.Reject("tx1", verify.RejectInput{Reason: "x", Evidence: &ev})
			assert.True(t, verify.IsValidation(err))
			assert.Len(t, f.view.Alerts(), 1)
			assert.Zero(t, f.uploader.calls)
		})
	}
}

func TestSendFailure_ReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = errors.New("not connected")
	f.open(t, "tx1", 5000)

	err := f.engine.Confirm("tx1")
	assert.True(t, verify.IsSendFailed(err))
	assert.Zero(t, f.engine.PendingCount())
	assert.False(t, f.view.Disabled("tx1"))
	assert.Equal(t, verify.StateVerifying, f.engine.State("tx1"))
	assert.Equal(t, []string{"Error: No hay conexión disponible"}, f.view.Alerts())

	f.sender.fail = nil
	require.NoError(t, f.engine.Confirm("tx1"))
}

func TestCancelled_ReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))

	ok := f.engine.HandleCancelled(protocol.Cancelled{TransaccionID: "tx1", TiempoTranscurrido: 15}, true)
	require.True(t, ok)

	assert.Zero(t, f.engine.PendingCount())
	assert.Equal(t, verify.StateCancelled, f.engine.State("tx1"))
	n, _ := f.notices.Last()
	assert.Equal(t, notice.LevelInfo, n.Level)
	assert.Contains(t, n.Message, "15 minutos")

	assert.False(t, f.engine.HandleCancelled(protocol.Cancelled{TransaccionID: "tx1"}, false))
	assert.Zero(t, f.clock.Pending())
}

func TestRemoteError_ReleasesReferencedLock(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	f.open(t, "tx2", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))
	require.NoError(t, f.engine.Confirm("tx2"))

	f.engine.HandleRemoteError(protocol.RemoteError{TransaccionID: "tx1", Message: "Transacción no encontrada"})

	_, held := f.engine.Pending("tx1")
	assert.False(t, held)
	_, held = f.engine.Pending("tx2")
	assert.True(t, held)
	assert.Equal(t, verify.StateVerifying, f.engine.State("tx1"))
	assert.False(t, f.view.Disabled("tx1"))
	assert.Equal(t, []string{"Error: Transacción no encontrada"}, f.view.Alerts())
}

func TestRemoteError_WithoutIDReleasesAll(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	f.open(t, "tx2", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))
	require.NoError(t, f.engine.Confirm("tx2"))

	f.engine.HandleRemoteError(protocol.RemoteError{})

	assert.Zero(t, f.engine.PendingCount())
	assert.Equal(t, []string{"Error: Error desconocido"}, f.view.Alerts())
}

func TestOperationTimeout_ReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))

	testutil.Drive(f.loop, f.clock, 29*time.Second)
	assert.Equal(t, 1, f.engine.PendingCount())

	testutil.Drive(f.loop, f.clock, time.Second)
	assert.Zero(t, f.engine.PendingCount())
	assert.Equal(t, verify.StateVerifying, f.engine.State("tx1"))
	assert.False(t, f.view.Disabled("tx1"))
	assert.Equal(t, []string{"El servidor no respondió a tiempo. Intenta nuevamente."}, f.view.Alerts())
}

func TestOperationTimeout_Disabled(t *testing.T) {
	cfg := verify.DefaultConfig()
	cfg.OperationTimeout = 0
	f := newFixture(t, verify.WithConfig(cfg))
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.Confirm("tx1"))

	assert.Zero(t, f.clock.Pending())
	testutil.Drive(f.loop, f.clock, time.Hour)
	assert.Equal(t, 1, f.engine.PendingCount())
}

func TestReferToAdmin(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)

	err := f.engine.ReferToAdmin("tx1", "")
	assert.True(t, verify.IsValidation(err))

	require.NoError(t, f.engine.ReferToAdmin("tx1", "El jugador envió dos pagos"))

	p := f.sender.last().payload.(protocol.ReferToAdmin)
	assert.Equal(t, "El jugador envió dos pagos", p.Descripcion)
	assert.Equal(t, verify.StateReferred, f.engine.State("tx1"))
	assert.Zero(t, f.engine.PendingCount())
	assert.Equal(t, 1, f.notices.Count(notice.LevelInfo))
	n, _ := f.notices.Last()
	assert.Equal(t, "tx1", n.TransactionID)

	// A referred transaction can only end on the service side.
	assert.True(t, verify.IsInvalidTransition(f.engine.Confirm("tx1")))
	assert.True(t, f.engine.HandleCompleted(verify.Completion{TransactionID: "tx1"}))
}

func TestTrack_SeedsRequestedAmount(t *testing.T) {
	f := newFixture(t)
	f.engine.Track(protocol.NewDepositRequest{
		TransaccionID: "tx1",
		JugadorID:     "p1",
		Monto:         3000,
	})

	tx, ok := f.engine.Transaction("tx1")
	require.True(t, ok)
	assert.Equal(t, "Jugador p1", tx.PlayerName())
	assert.Equal(t, verify.StateNew, tx.State)

	require.NoError(t, f.engine.SubmitObserved("tx1", 3000))
	assert.Equal(t, []protocol.Kind{protocol.KindConfirmPayment}, f.sender.kinds())
}

func TestReset_StopsTimers(t *testing.T) {
	f := newFixture(t)
	f.open(t, "tx1", 5000)
	require.NoError(t, f.engine.SubmitObserved("tx1", 4000))
	f.loop.Settle()
	require.NoError(t, f.engine.SubmitAdjustment("tx1", 4000, "ajuste"))
	f.engine.HandleAmountAdjusted(protocol.AmountAdjusted{TransaccionID: "tx1", MontoNuevo: 4000})
	f.engine.HandleCompleted(verify.Completion{TransactionID: "tx0"})
	require.NotZero(t, f.clock.Pending())

	f.engine.Reset()

	assert.Zero(t, f.clock.Pending())
	assert.Zero(t, f.engine.PendingCount())
	assert.Zero(t, f.engine.ResolvedCount())
	assert.False(t, f.engine.AdjustGuardActive("tx1"))

	testutil.Drive(f.loop, f.clock, time.Minute)
	assert.Empty(t, f.view.Alerts())
}
