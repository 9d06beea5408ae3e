package verify

import (
	"fmt"
	"log/slog"

	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Track records a newly announced transaction. No lock is taken.
func (e *Engine) Track(req protocol.NewDepositRequest) {
	id := req.TransaccionID
	if id == "" || e.IsResolved(id) {
		return
	}
	tx := e.track(id)
	tx.PlayerID = req.JugadorID
	tx.Requested = req.Monto
	if req.Jugador != nil {
		tx.Player = *req.Jugador
	}
}

// OpenVerification shows the verification prompt for req. Returns false when
// the request is discarded.
func (e *Engine) OpenVerification(req protocol.VerifyPaymentRequest) bool {
	id := req.TransaccionID
	if id == "" {
		slog.Warn("verification request without transaction id")
		return false
	}
	if e.IsResolved(id) {
		_ = e.discardResolved(id, "verification request")
		return false
	}

	tx := e.track(id)
	if _, busy := e.ops[id]; busy {
		slog.Warn("verification request while operation in flight", "transaction", id)
		return false
	}
	if err := e.setState(tx, StateVerifying); err != nil {
		return false
	}
	tx.Requested = req.Monto
	tx.Player = req.Jugador
	tx.Payment = req.DatosPago
	tx.Observed = 0
	tx.RejectOnly = false

	slog.Info("verification opened",
		"transaction", id,
		"requested", req.Monto,
		"player", tx.PlayerName(),
	)
	e.view.PromptVerification(*tx)
	return true
}

// SubmitObserved applies the amount policy to the amount the cashier observed
// in the bank.
func (e *Engine) SubmitObserved(id string, observed protocol.Minor) error {
	if e.IsResolved(id) {
		return e.discardResolved(id, "observed amount")
	}
	if observed <= 0 {
		e.view.Alert(msgObservedRequired)
		return newError(CodeValidation, id, "observed amount required")
	}
	tx := e.track(id)
	if tx.Requested <= 0 {
		e.view.Alert(msgUnknownRequest)
		return newError(CodeValidation, id, "requested amount unknown")
	}
	if _, busy := e.ops[id]; busy {
		return newError(CodeInFlight, id, "observed amount")
	}

	if tx.State == StateNew {
		if err := e.setState(tx, StateVerifying); err != nil {
			return err
		}
	}
	tx.Observed = observed
	if observed == tx.Requested {
		if tx.State == StateAdjusting {
			_ = e.setState(tx, StateVerifying)
		}
		return e.Confirm(id)
	}

	op := e.acquire(id, OpVerify)
	var (
		minimum protocol.Minor
		err     error
	)
	e.loop.Go("fetch-minimum", func() {
		minimum, err = e.fetchMinimum()
	}, func() {
		e.decideDifference(op, observed, minimum, err)
	})
	return nil
}

func (e *Engine) fetchMinimum() (protocol.Minor, error) {
	if e.minimum == nil {
		return e.cfg.DefaultMinimum, nil
	}
	return e.minimum.MinimumDeposit(e.ctx)
}

func (e *Engine) decideDifference(op *pendingOp, observed, minimum protocol.Minor, err error) {
	id := op.TransactionID
	if e.ops[id] != op {
		slog.Warn("amount check superseded", "transaction", id)
		return
	}
	e.release(id)
	if e.IsResolved(id) {
		_ = e.discardResolved(id, "amount check")
		return
	}
	if err != nil {
		slog.Warn("minimum deposit unavailable, using default",
			"error", err,
			"default", e.cfg.DefaultMinimum,
		)
		minimum = e.cfg.DefaultMinimum
	}

	tx := e.track(id)
	tx.Minimum = minimum

	if observed < minimum {
		if err := e.setState(tx, StateRejecting); err != nil {
			return
		}
		tx.RejectOnly = true
		slog.Info("observed amount below minimum, rejection required",
			"transaction", id,
			"observed", observed,
			"minimum", minimum,
		)
		e.view.Alert(fmt.Sprintf(msgBelowMinimum, protocol.FormatAmount(observed), protocol.FormatAmount(minimum)))
		e.view.RequireRejection(*tx)
		return
	}

	if err := e.setState(tx, StateAdjusting); err != nil {
		return
	}
	slog.Info("amount mismatch, adjustment required",
		"transaction", id,
		"requested", tx.Requested,
		"observed", observed,
	)
	e.view.PromptAdjustment(*tx)
}

// SubmitAdjustment sends the corrected amount. The confirmation follows
// automatically once the service acknowledges it.
func (e *Engine) SubmitAdjustment(id string, amount protocol.Minor, reason string) error {
	if e.IsResolved(id) {
		return e.discardResolved(id, "adjustment")
	}
	if amount <= 0 {
		e.view.Alert(msgAdjustAmountNeeded)
		return newError(CodeValidation, id, "adjusted amount required")
	}
	tx := e.track(id)
	if tx.Minimum > 0 && amount < tx.Minimum {
		e.view.Alert(fmt.Sprintf(msgBelowMinimum, protocol.FormatAmount(amount), protocol.FormatAmount(tx.Minimum)))
		return newError(CodeBelowMinimum, id, "adjusted amount below minimum")
	}
	if !canTransition(tx.State, StateAwaitingAdjustAck) {
		return e.setState(tx, StateAwaitingAdjustAck)
	}

	reason = protocol.NormalizeText(reason)
	if reason == "" {
		reason = DefaultAdjustReason
	}

	if e.acquire(id, OpAdjust) == nil {
		return newError(CodeInFlight, id, "adjustment")
	}
	prev := tx.State
	_ = e.setState(tx, StateAwaitingAdjustAck)
	tx.Observed = amount
	e.view.SetActionsDisabled(id, true)

	err := e.sender.Emit(protocol.KindAdjustAmount, protocol.AdjustAmount{
		TransaccionID: id,
		MontoReal:     amount,
		Razon:         reason,
	})
	if err != nil {
		return e.sendFailed(tx, prev, err)
	}
	slog.Info("adjustment sent", "transaction", id, "amount", amount)
	return nil
}

// Confirm confirms the transaction at its current amount.
func (e *Engine) Confirm(id string) error {
	if e.IsResolved(id) {
		return e.discardResolved(id, "confirm")
	}
	tx := e.track(id)
	if tx.RejectOnly {
		e.view.Alert(fmt.Sprintf(msgBelowMinimum, protocol.FormatAmount(tx.Observed), protocol.FormatAmount(tx.Minimum)))
		return newError(CodeBelowMinimum, id, "confirm below minimum")
	}
	if _, busy := e.ops[id]; busy || e.uploads[id] {
		return newError(CodeInFlight, id, "confirm")
	}
	if tx.State == StateAdjusting {
		e.view.Alert(msgAdjustFirst)
	}
	if !canTransition(tx.State, StateConfirming) {
		return e.setState(tx, StateConfirming)
	}

	e.acquire(id, OpConfirm)
	prev := tx.State
	_ = e.setState(tx, StateConfirming)
	e.view.SetActionsDisabled(id, true)
	e.view.CloseVerification(id)

	payload := protocol.ConfirmPayment{TransaccionID: id}
	if tx.Adjusted {
		amount := tx.Observed
		payload.MontoAjustado = &amount
	}
	if err := e.sender.Emit(protocol.KindConfirmPayment, payload); err != nil {
		return e.sendFailed(tx, prev, err)
	}
	slog.Info("confirmation sent", "transaction", id)
	return nil
}

// RejectInput is the cashier's rejection.
type RejectInput struct {
	Reason   string
	Evidence *protocol.Evidence
}

// Reject rejects the transaction. Evidence, when attached, is uploaded first;
// if the upload fails nothing is sent and no lock is taken.
func (e *Engine) Reject(id string, in RejectInput) error {
	if e.IsResolved(id) {
		return e.discardResolved(id, "reject")
	}
	reason := protocol.NormalizeText(in.Reason)
	if reason == "" {
		e.view.Alert(msgReasonRequired)
		return newError(CodeValidation, id, "reason required")
	}
	if in.Evidence != nil {
		if msg, ok := e.checkEvidence(in.Evidence); !ok {
			e.view.Alert(msg)
			return newError(CodeValidation, id, "evidence rejected")
		}
	}
	if _, busy := e.ops[id]; busy || e.uploads[id] {
		return newError(CodeInFlight, id, "reject")
	}
	tx := e.track(id)
	if !canTransition(tx.State, StateRejecting) {
		return e.setState(tx, StateRejecting)
	}

	if in.Evidence == nil {
		return e.sendReject(id, reason, "")
	}
	if e.uploader == nil {
		e.view.Alert(msgUploadUnavailable)
		return newError(CodeValidation, id, "evidence upload unavailable")
	}

	ev := *in.Evidence
	e.uploads[id] = true
	e.view.SetActionsDisabled(id, true)

	var (
		url string
		err error
	)
	e.loop.Go("upload-evidence", func() {
		url, err = e.uploader.UploadEvidence(e.ctx, ev)
	}, func() {
		if !e.uploads[id] {
			// Session was reset while uploading.
			return
		}
		delete(e.uploads, id)
		if err != nil {
			slog.Warn("evidence upload failed", "transaction", id, "error", err)
			e.view.SetActionsDisabled(id, false)
			e.view.Alert(fmt.Sprintf(msgUploadFailed, err))
			return
		}
		if e.IsResolved(id) {
			_ = e.discardResolved(id, "reject after upload")
			return
		}
		if err := e.sendReject(id, reason, url); err != nil {
			slog.Debug("reject after upload", "transaction", id, "error", err)
		}
	})
	return nil
}

func (e *Engine) sendReject(id, reason, evidenceURL string) error {
	tx := e.track(id)
	if e.acquire(id, OpReject) == nil {
		return newError(CodeInFlight, id, "reject")
	}
	prev := tx.State
	if err := e.setState(tx, StateRejecting); err != nil {
		e.release(id)
		e.view.SetActionsDisabled(id, false)
		return err
	}
	e.view.SetActionsDisabled(id, true)
	e.view.CloseVerification(id)

	err := e.sender.Emit(protocol.KindRejectPayment, protocol.RejectPayment{
		TransaccionID: id,
		Motivo: protocol.RejectionReason{
			DescripcionDetallada: reason,
			ImagenRechazoURL:     evidenceURL,
		},
	})
	if err != nil {
		return e.sendFailed(tx, prev, err)
	}
	slog.Info("rejection sent", "transaction", id, "evidence", evidenceURL != "")
	return nil
}

// ReferToAdmin hands the transaction to an administrator. The lock is only
// held while sending: the service answers by removing the transaction from
// the cashier's queue.
func (e *Engine) ReferToAdmin(id, description string) error {
	if e.IsResolved(id) {
		return e.discardResolved(id, "referral")
	}
	description = protocol.NormalizeText(description)
	if description == "" {
		e.view.Alert(msgDescriptionNeeded)
		return newError(CodeValidation, id, "description required")
	}
	if _, busy := e.ops[id]; busy || e.uploads[id] {
		return newError(CodeInFlight, id, "referral")
	}
	tx := e.track(id)
	if !canTransition(tx.State, StateReferred) {
		return e.setState(tx, StateReferred)
	}

	e.acquire(id, OpReferral)
	prev := tx.State
	_ = e.setState(tx, StateReferred)
	e.view.SetActionsDisabled(id, true)

	err := e.sender.Emit(protocol.KindReferToAdmin, protocol.ReferToAdmin{
		TransaccionID: id,
		Descripcion:   description,
	})
	if err != nil {
		return e.sendFailed(tx, prev, err)
	}
	e.release(id)
	e.view.CloseVerification(id)
	n := notice.Info(titleReferred, fmt.Sprintf(msgReferred, id))
	n.TransactionID = id
	e.notifier.Notify(n)
	slog.Info("referred to admin", "transaction", id)
	return nil
}
