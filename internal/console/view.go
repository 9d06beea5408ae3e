package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// View renders client output on a writer. It implements client.View and
// notice.Notifier. Safe for concurrent use.
type View struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	// disabled tracks transactions whose actions are locked, so prompts can
	// show it.
	disabled map[string]bool
}

// NewView returns a view writing format ("text" or "json") to w.
func NewView(w io.Writer, format string) *View {
	if format != FormatJSON {
		format = FormatText
	}
	return &View{w: w, format: format, disabled: make(map[string]bool)}
}

// Line is one JSON-format output record.
type Line struct {
	Event         string `json:"event"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
	Data          any    `json:"data,omitempty"`
}

func (v *View) emit(l Line, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.format == FormatJSON {
		_ = json.NewEncoder(v.w).Encode(l)
		return
	}
	fmt.Fprintln(v.w, text)
}

func (v *View) PromptVerification(tx verify.Transaction) {
	var b strings.Builder
	fmt.Fprintf(&b, "[verificar] %s  %s  %s", tx.ID, tx.PlayerName(), protocol.FormatAmount(tx.Requested))
	if p := tx.Payment; p.Banco != "" || p.Referencia != "" {
		fmt.Fprintf(&b, "\n  banco=%s ref=%s tel=%s fecha=%s", p.Banco, p.Referencia, p.Telefono, p.Fecha)
	}
	b.WriteString("\n  > observed <id> <monto> | reject <id> [@imagen] <motivo> | refer <id> <descripción>")
	v.emit(Line{Event: "prompt-verification", TransactionID: tx.ID, Data: promptData(tx)}, b.String())
}

func (v *View) PromptAdjustment(tx verify.Transaction) {
	text := fmt.Sprintf("[ajustar] %s  solicitado %s, recibido %s\n  > adjust <id> <monto> [razón] | reject <id> [@imagen] <motivo>",
		tx.ID, protocol.FormatAmount(tx.Requested), protocol.FormatAmount(tx.Observed))
	v.emit(Line{Event: "prompt-adjustment", TransactionID: tx.ID, Data: promptData(tx)}, text)
}

func (v *View) RequireRejection(tx verify.Transaction) {
	text := fmt.Sprintf("[rechazar] %s  recibido %s, mínimo %s\n  > reject <id> [@imagen] <motivo>",
		tx.ID, protocol.FormatAmount(tx.Observed), protocol.FormatAmount(tx.Minimum))
	v.emit(Line{Event: "require-rejection", TransactionID: tx.ID, Data: promptData(tx)}, text)
}

func (v *View) CloseVerification(id string) {
	v.emit(Line{Event: "close-verification", TransactionID: id}, "[cerrado] "+id)
}

func (v *View) SetActionsDisabled(id string, disabled bool) {
	v.mu.Lock()
	if disabled {
		v.disabled[id] = true
	} else {
		delete(v.disabled, id)
	}
	v.mu.Unlock()
}

// Disabled reports whether actions on id are currently locked.
func (v *View) Disabled(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disabled[id]
}

func (v *View) Alert(message string) {
	v.emit(Line{Event: "alert", Message: message}, "! "+message)
}

func (v *View) ShowTransactions(list []protocol.TransactionSummary) {
	var b strings.Builder
	fmt.Fprintf(&b, "Transacciones pendientes (%d)", len(list))
	for _, tx := range list {
		fmt.Fprintf(&b, "\n  %-24s %-8s %-12s %14s  %s",
			tx.ID, tx.Tipo, tx.Estado, protocol.FormatAmount(tx.Monto), tx.Jugador.DisplayName(tx.Jugador.ID))
	}
	v.emit(Line{Event: "transactions", Data: list}, b.String())
}

func (v *View) MarkNew(id string) {
	v.emit(Line{Event: "new-transaction", TransactionID: id}, "* nueva: "+id)
}

func (v *View) ShowLogin() {
	v.mu.Lock()
	clear(v.disabled)
	v.mu.Unlock()
	v.emit(Line{Event: "login"}, "Inicia sesión: login <email> <contraseña>")
}

func (v *View) ShowDashboard(c protocol.Cashier) {
	name := c.NombreCompleto
	if name == "" {
		name = c.Email
	}
	v.emit(Line{Event: "dashboard", Data: c}, "Cajero: "+name)
}

// Notify renders a notice.
func (v *View) Notify(n notice.Notice) {
	prefix := "·"
	switch n.Level {
	case notice.LevelSuccess:
		prefix = "✓"
	case notice.LevelWarning:
		prefix = "!"
	case notice.LevelError:
		prefix = "✗"
	}
	if n.Critical {
		prefix += "!"
	}
	text := fmt.Sprintf("%s %s: %s", prefix, n.Title, n.Message)
	v.emit(Line{Event: "notice", TransactionID: n.TransactionID, Message: n.Message, Data: n}, text)
}

// Print writes a plain message.
func (v *View) Print(message string) {
	v.emit(Line{Event: "info", Message: message}, message)
}

// PrintData writes a value as JSON in both formats.
func (v *View) PrintData(event string, data any) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		v.Alert(err.Error())
		return
	}
	v.emit(Line{Event: event, Data: data}, string(raw))
}

type prompt struct {
	Player     string                  `json:"player"`
	Requested  protocol.Minor          `json:"requested"`
	Observed   protocol.Minor          `json:"observed,omitempty"`
	Minimum    protocol.Minor          `json:"minimum,omitempty"`
	Payment    protocol.PaymentDetails `json:"payment"`
	State      string                  `json:"state"`
	RejectOnly bool                    `json:"reject_only,omitempty"`
}

func promptData(tx verify.Transaction) prompt {
	return prompt{
		Player:     tx.PlayerName(),
		Requested:  tx.Requested,
		Observed:   tx.Observed,
		Minimum:    tx.Minimum,
		Payment:    tx.Payment,
		State:      string(tx.State),
		RejectOnly: tx.RejectOnly,
	}
}
