package verify

import (
	"fmt"
	"log/slog"

	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// HandleAmountAdjusted continues an acknowledged adjustment into exactly one
// confirmation. A repeated acknowledgement within the guard window is
// ignored.
func (e *Engine) HandleAmountAdjusted(p protocol.AmountAdjusted) {
	id := p.TransaccionID
	if id == "" {
		slog.Warn("amount adjusted without transaction id")
		return
	}
	if e.IsResolved(id) {
		_ = e.discardResolved(id, "amount adjusted")
		return
	}
	if e.guards[id].Active() {
		slog.Warn("duplicate adjustment acknowledgement ignored", "transaction", id)
		return
	}
	tx, ok := e.txs[id]
	op, held := e.ops[id]
	if !ok || tx.State != StateAwaitingAdjustAck || !held || op.Kind != OpAdjust {
		slog.Warn("adjustment acknowledgement without pending adjustment, discarding",
			"transaction", id,
			"state", e.State(id),
		)
		return
	}
	e.guards[id] = e.loop.AfterFunc(e.cfg.AdjustAckGuard, "adjust-guard", func() {
		delete(e.guards, id)
	})

	e.release(id)
	tx.Adjusted = true
	if p.MontoNuevo > 0 {
		tx.Observed = p.MontoNuevo
	}

	slog.Info("adjustment acknowledged, confirming", "transaction", id, "amount", tx.Observed)
	if err := e.Confirm(id); err != nil {
		slog.Warn("confirm after adjustment", "transaction", id, "error", err)
	}
}

// Completion is a terminal success reported by the service.
type Completion struct {
	TransactionID string
	Amount        protocol.Minor
	NewBalance    protocol.Minor
	Withdrawal    bool
	Category      string
}

// CompletionFromDeposit converts a deposit-completed payload.
func CompletionFromDeposit(p protocol.DepositCompleted) Completion {
	return Completion{TransactionID: p.TransaccionID, Amount: p.Monto, NewBalance: p.SaldoNuevo}
}

// CompletionFromWithdrawal converts a withdrawal-completed payload.
func CompletionFromWithdrawal(p protocol.WithdrawalCompleted) Completion {
	return Completion{
		TransactionID: p.TransaccionID,
		Amount:        p.Monto,
		NewBalance:    p.SaldoNuevo,
		Withdrawal:    true,
		Category:      p.Categoria,
	}
}

// HandleCompleted resolves the transaction as completed. Returns false when
// the event was discarded.
func (e *Engine) HandleCompleted(c Completion) bool {
	id := c.TransactionID
	if id == "" {
		slog.Warn("completion without transaction id")
		return false
	}
	if e.IsResolved(id) {
		_ = e.discardResolved(id, "completion")
		return false
	}
	e.resolve(id, StateCompleted)

	title := titleDepositCompleted
	if c.Withdrawal {
		title = titleWithdrawalCompleted
	}
	n := notice.Success(title, fmt.Sprintf(msgCompleted,
		id,
		protocol.FormatAmount(c.Amount),
		protocol.FormatAmount(c.NewBalance),
	))
	n.TransactionID = id
	e.notifier.Notify(n)

	slog.Info("transaction completed",
		"transaction", id,
		"amount", c.Amount,
		"withdrawal", c.Withdrawal,
		"category", c.Category,
	)
	return true
}

// HandleRejected resolves the transaction as rejected.
func (e *Engine) HandleRejected(p protocol.DepositRejected) bool {
	id := p.TransaccionID
	if id == "" {
		slog.Warn("rejection without transaction id")
		return false
	}
	if e.IsResolved(id) {
		_ = e.discardResolved(id, "rejection")
		return false
	}
	e.resolve(id, StateRejected)

	n := notice.Warning(titleDepositRejected, fmt.Sprintf(msgRejected, id, p.Motivo))
	n.TransactionID = id
	e.notifier.Notify(n)
	slog.Info("transaction rejected", "transaction", id)
	return true
}

// HandleCancelled resolves the transaction as cancelled by the player or by
// the service's inactivity timeout. No lock is needed; any held lock is
// released.
func (e *Engine) HandleCancelled(p protocol.Cancelled, byTimeout bool) bool {
	id := p.TransaccionID
	if id == "" {
		slog.Warn("cancellation without transaction id")
		return false
	}
	if e.IsResolved(id) {
		_ = e.discardResolved(id, "cancellation")
		return false
	}
	e.resolve(id, StateCancelled)

	msg := fmt.Sprintf(msgCancelledPlayer, id)
	if byTimeout {
		msg = fmt.Sprintf(msgCancelledTimeout, id, p.TiempoTranscurrido)
	}
	n := notice.Info(titleCancelled, msg)
	n.TransactionID = id
	e.notifier.Notify(n)
	slog.Info("transaction cancelled",
		"transaction", id,
		"timeout", byTimeout,
		"elapsed_minutes", p.TiempoTranscurrido,
	)
	return true
}

// HandleRemoteError surfaces a failure reported by the service and releases
// the lock it refers to. Without a transaction id every lock is released.
func (e *Engine) HandleRemoteError(p protocol.RemoteError) {
	msg := p.Message
	if msg == "" {
		msg = msgUnknownError
	}
	id := p.TransaccionID

	if id != "" && e.IsResolved(id) {
		_ = e.discardResolved(id, "remote error")
		return
	}

	var ids []string
	if id != "" {
		ids = []string{id}
	} else {
		for held := range e.ops {
			ids = append(ids, held)
		}
	}
	for _, x := range ids {
		e.release(x)
		if tx, ok := e.txs[x]; ok {
			e.revert(tx)
		}
		e.view.SetActionsDisabled(x, false)
	}

	slog.Warn("remote error", "transaction", id, "message", msg, "released", len(ids))
	e.view.Alert(fmt.Sprintf(msgRemoteError, msg))
}

// resolve moves id into the CompletedSet and cleans up everything it held.
func (e *Engine) resolve(id string, state State) {
	e.release(id)
	if g, ok := e.guards[id]; ok {
		g.Stop()
		delete(e.guards, id)
	}
	delete(e.uploads, id)

	tx := e.track(id)
	tx.State = state
	tx.UpdatedAt = e.loop.Now()
	e.resolved[id] = state

	e.view.CloseVerification(id)
	e.view.SetActionsDisabled(id, false)
}
