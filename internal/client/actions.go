package client

import (
	"log/slog"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

// Refresh reloads the pending transactions list.
func (c *Client) Refresh() {
	c.loop.Post("refresh", c.refresh)
}

// refresh fetches the list off the loop and renders it, then marks the
// transactions admitted since the last render. Only the latest reload is
// rendered. A 401 ends the session as expired.
func (c *Client) refresh() {
	token := c.sessions.Token()
	if token == "" {
		return
	}
	c.refreshSeq++
	seq := c.refreshSeq

	var (
		list []protocol.TransactionSummary
		err  error
	)
	c.loop.Go("load-transactions", func() {
		list, err = c.backend.PendingTransactions(c.ctx, token)
	}, func() {
		if seq != c.refreshSeq {
			slog.Debug("stale transaction list dropped", "seq", seq)
			return
		}
		if err != nil {
			if c.unauth(err) {
				c.tokenExpired()
				return
			}
			slog.Warn("loading transactions", "error", err)
			return
		}
		c.view.ShowTransactions(list)
		for _, id := range c.newMarks {
			c.view.MarkNew(id)
		}
		c.newMarks = nil
	})
}

// VerifyFromList opens the verification prompt for a transaction picked from
// the list.
func (c *Client) VerifyFromList(id string) {
	c.loop.Post("verify-from-list", func() {
		token := c.sessions.Token()
		if token == "" {
			return
		}
		var (
			detail protocol.TransactionDetail
			err    error
		)
		c.loop.Go("load-transaction", func() {
			detail, err = c.backend.TransactionDetail(c.ctx, token, id)
		}, func() {
			if c.sessions.Token() != token {
				return
			}
			if err != nil {
				if c.unauth(err) {
					c.tokenExpired()
					return
				}
				c.alertf(msgDetailFailed, err)
				return
			}
			if c.engine.OpenVerification(detail.VerifyRequest()) {
				c.record("verification-opened", id, nil)
			}
		})
	})
}

// SubmitObserved applies the amount policy to what the cashier saw in the
// bank.
func (c *Client) SubmitObserved(id string, observed protocol.Minor) {
	c.act("observed", id, func() error { return c.engine.SubmitObserved(id, observed) })
}

// SubmitAdjustment sends an amount correction.
func (c *Client) SubmitAdjustment(id string, amount protocol.Minor, reason string) {
	c.act("adjust", id, func() error { return c.engine.SubmitAdjustment(id, amount, reason) })
}

// Confirm confirms the payment.
func (c *Client) Confirm(id string) {
	c.act("confirm", id, func() error { return c.engine.Confirm(id) })
}

// Reject rejects the payment, uploading evidence first when attached.
func (c *Client) Reject(id string, in verify.RejectInput) {
	c.act("reject", id, func() error { return c.engine.Reject(id, in) })
}

// ReferToAdmin hands the transaction to an administrator.
func (c *Client) ReferToAdmin(id, description string) {
	c.act("refer", id, func() error { return c.engine.ReferToAdmin(id, description) })
}

func (c *Client) act(name, id string, fn func() error) {
	c.loop.Post(name, func() {
		if !c.sessions.Active() {
			slog.Warn("action without session", "action", name, "transaction", id)
			return
		}
		err := fn()
		if err != nil {
			slog.Debug("action refused", "action", name, "transaction", id, "error", err)
		}
		c.record("action-"+name, id, actionResult(err))
	})
}

func actionResult(err error) map[string]string {
	if err == nil {
		return map[string]string{"result": "ok"}
	}
	return map[string]string{"result": "refused", "error": err.Error()}
}
