package client

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/iamp15/elpatio-appCajeros/internal/logout"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// Login authenticates against the backend and starts a session.
func (c *Client) Login(email, password string) {
	email = strings.TrimSpace(email)
	c.loop.Post("login", func() {
		if email == "" || password == "" {
			c.view.Alert(msgIncompleteFields)
			return
		}
		var (
			res protocol.LoginResult
			err error
		)
		c.loop.Go("login", func() {
			res, err = c.backend.Login(c.ctx, email, password)
		}, func() {
			if err != nil {
				slog.Warn("login failed", "email", email, "error", err)
				c.alertf(msgLoginFailed, err)
				return
			}
			c.startSession(res.Token, res.Cashier, true)
		})
	})
}

// Resume starts a session from a token obtained earlier.
func (c *Client) Resume(token string, cashier protocol.Cashier) {
	c.loop.Post("resume", func() {
		c.startSession(token, cashier, false)
	})
}

// Logout ends the session with an acknowledged logout. Repeated calls while
// one is running are ignored.
func (c *Client) Logout() {
	c.loop.Post("logout", func() {
		if !c.sessions.Active() && !c.sup.IsConnected() {
			slog.Debug("logout without session")
			return
		}
		c.record("logout", "", nil)
		c.logout.Logout()
	})
}

func (c *Client) startSession(token string, cashier protocol.Cashier, announce bool) {
	if c.logout.InProgress() {
		slog.Warn("session start ignored while logging out")
		return
	}
	if c.sessions.Active() {
		c.clearSession()
	}
	sess, err := c.sessions.Init(token, cashier)
	if err != nil {
		c.alertf(msgLoginFailed, err)
		return
	}
	if c.sessions.Expired() {
		c.tokenExpired()
		return
	}
	c.setToken(token)
	if !sess.ExpiresAt.IsZero() {
		c.expiry = c.loop.AfterFunc(sess.ExpiresAt.Sub(c.loop.Now()), "token-expiry", c.tokenExpired)
	}

	c.record("session-start", "", sess.Cashier)
	c.view.ShowDashboard(sess.Cashier)
	c.sup.AuthenticateWithRetry()
	c.refresh()

	if announce {
		name := sess.Cashier.NombreCompleto
		if name == "" {
			name = sess.Cashier.Email
		}
		c.notifier.Notify(notice.Success(titleSessionStarted, fmt.Sprintf(msgWelcome, name)))
	}
}

// finalizeLogout runs once per logout, after the transport is closed.
func (c *Client) finalizeLogout(reason logout.Reason) {
	c.record("logout-finalized", "", map[string]string{"reason": string(reason)})
	c.clearSession()
	c.notifier.Notify(notice.Info(titleSessionClosed, msgLoggedOut))
	c.view.ShowLogin()
}

// tokenExpired ends the session locally. The service already considers the
// token invalid, so no remote logout is attempted.
func (c *Client) tokenExpired() {
	if !c.sessions.Active() {
		return
	}
	slog.Warn("session token expired", "session", c.sessions.ID())
	c.record("token-expired", "", nil)
	c.teardownLocal()
	c.view.ShowLogin()
	c.view.Alert(msgSessionExpired)
}

// teardownLocal closes the connection and drops all session state.
func (c *Client) teardownLocal() {
	c.sup.Disconnect()
	c.clearSession()
}

// clearSession drops the session and everything derived from it.
func (c *Client) clearSession() {
	c.expiry.Stop()
	c.expiry = nil
	c.sessions.Teardown()
	c.setToken("")
	c.engine.Reset()
	c.dedup.Reset()
	c.newMarks = nil
	c.refreshSeq++
}
