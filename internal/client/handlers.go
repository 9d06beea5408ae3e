package client

import (
	"fmt"
	"log/slog"

	"github.com/iamp15/elpatio-appCajeros/internal/dedup"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

func (c *Client) handlers() map[protocol.Kind]supervisor.Handler {
	return map[protocol.Kind]supervisor.Handler{
		protocol.KindConnect:             c.onConnect,
		protocol.KindDisconnect:          decoded(c.onDisconnect),
		protocol.KindAuthResult:          decoded(c.onAuthResult),
		protocol.KindNewDepositRequest:   decoded(c.onNewDepositRequest),
		protocol.KindVerifyPayment:       decoded(c.onVerifyPayment),
		protocol.KindDepositCompleted:    decoded(c.onDepositCompleted),
		protocol.KindWithdrawalCompleted: decoded(c.onWithdrawalCompleted),
		protocol.KindDepositRejected:     decoded(c.onDepositRejected),
		protocol.KindCancelledByPlayer:   decoded(c.onCancelledByPlayer),
		protocol.KindCancelledByTimeout:  decoded(c.onCancelledByTimeout),
		protocol.KindNotification:        decoded(c.onNotification),
		protocol.KindAmountAdjusted:      decoded(c.onAmountAdjusted),
		protocol.KindError:               decoded(c.onRemoteError),
		protocol.KindSessionReplaced:     c.onSessionReplaced,
	}
}

// decoded adapts a typed handler. Malformed payloads are logged and dropped.
func decoded[T any](h func(T)) supervisor.Handler {
	return func(ev protocol.Event) {
		var p T
		if err := ev.Decode(&p); err != nil {
			slog.Warn("dropping malformed event", "kind", ev.Kind, "error", err)
			return
		}
		h(p)
	}
}

func (c *Client) onConnect(protocol.Event) {
	slog.Info("connection established", "session", c.sessions.ID())
}

func (c *Client) onDisconnect(p protocol.Disconnect) {
	slog.Info("connection closed", "reason", p.Reason)
	if p.Reason == supervisor.ReasonClientDisconnect {
		return
	}
	if !c.sessions.Active() || c.logout.InProgress() {
		return
	}
	c.record("reconnect", "", p)
	c.sup.AuthenticateWithRetry()
}

func (c *Client) onAuthResult(p protocol.AuthResult) {
	if p.Success {
		c.record("authenticated", "", nil)
		return
	}
	slog.Error("authentication failed", "message", p.Message)
	c.notifier.Notify(notice.Error(titleAuthFailed, p.Message))
}

func (c *Client) onNewDepositRequest(p protocol.NewDepositRequest) {
	if p.TransaccionID != "" && c.engine.IsResolved(p.TransaccionID) {
		slog.Warn("deposit request for resolved transaction, discarding", "transaction", p.TransaccionID)
		return
	}
	key := dedup.KeyFor(p)
	if !c.dedup.Admit(key) {
		slog.Debug("duplicate deposit request", "key", key)
		return
	}
	c.engine.Track(p)
	c.record("admitted", p.TransaccionID, map[string]string{"key": key.String()})
	slog.Info("new deposit request",
		"key", key,
		"player", playerName(p),
		"amount", protocol.FormatAmount(p.Monto),
	)

	if p.TransaccionID != "" {
		c.newMarks = append(c.newMarks, p.TransaccionID)
	}
	c.refresh()
}

func playerName(p protocol.NewDepositRequest) string {
	if p.Jugador == nil {
		return protocol.Player{}.DisplayName(p.JugadorID)
	}
	return p.Jugador.DisplayName(p.JugadorID)
}

func (c *Client) onVerifyPayment(p protocol.VerifyPaymentRequest) {
	if !c.engine.OpenVerification(p) {
		return
	}
	c.record("verification-opened", p.TransaccionID, nil)
	c.refresh()
}

func (c *Client) onDepositCompleted(p protocol.DepositCompleted) {
	c.completed(verify.CompletionFromDeposit(p))
}

func (c *Client) onWithdrawalCompleted(p protocol.WithdrawalCompleted) {
	c.completed(verify.CompletionFromWithdrawal(p))
}

func (c *Client) completed(done verify.Completion) {
	if !c.engine.HandleCompleted(done) {
		return
	}
	c.record("completed", done.TransactionID, nil)
	c.refresh()
}

func (c *Client) onDepositRejected(p protocol.DepositRejected) {
	if !c.engine.HandleRejected(p) {
		return
	}
	c.record("rejected", p.TransaccionID, nil)
	c.refresh()
}

func (c *Client) onCancelledByPlayer(p protocol.Cancelled) {
	c.cancelled(p, false)
}

func (c *Client) onCancelledByTimeout(p protocol.Cancelled) {
	c.cancelled(p, true)
}

func (c *Client) cancelled(p protocol.Cancelled, byTimeout bool) {
	if !c.engine.HandleCancelled(p, byTimeout) {
		return
	}
	c.record("cancelled", p.TransaccionID, map[string]bool{"timeout": byTimeout})
	c.refresh()
}

func (c *Client) onNotification(p protocol.Notification) {
	title := p.Titulo
	if title == "" {
		title = titleNotification
	}
	n := notice.Info(title, p.Mensaje)
	n.TransactionID = p.TransaccionID
	n.Critical = p.Critical()
	c.notifier.Notify(n)
}

func (c *Client) onAmountAdjusted(p protocol.AmountAdjusted) {
	c.record("amount-adjusted", p.TransaccionID, nil)
	c.engine.HandleAmountAdjusted(p)
	c.refresh()
}

func (c *Client) onRemoteError(p protocol.RemoteError) {
	c.record("remote-error", p.TransaccionID, map[string]string{"message": p.Message})
	c.engine.HandleRemoteError(p)
	c.refresh()
}

// onSessionReplaced runs after the supervisor already dropped the connection.
func (c *Client) onSessionReplaced(protocol.Event) {
	c.record("session-replaced", "", nil)
	c.notifier.Notify(notice.Warning(titleSessionClosed, msgSessionReplaced))
	c.teardownLocal()
	c.view.ShowLogin()
}

func (c *Client) alertf(format string, args ...any) {
	c.view.Alert(fmt.Sprintf(format, args...))
}
