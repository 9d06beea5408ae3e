package testutil

import (
	"sync"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

// RecordingView records every UI call the client core makes.
//
// Thread-safety: safe for concurrent use.
type RecordingView struct {
	mu sync.Mutex

	verifications []verify.Transaction
	adjustments   []verify.Transaction
	rejections    []verify.Transaction
	closed        []string
	alerts        []string
	disabled      map[string]bool
	lists         [][]protocol.TransactionSummary
	marked        []string
	loginShown    int
	dashboards    []protocol.Cashier
}

func (v *RecordingView) PromptVerification(tx verify.Transaction) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verifications = append(v.verifications, tx)
}

func (v *RecordingView) PromptAdjustment(tx verify.Transaction) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.adjustments = append(v.adjustments, tx)
}

func (v *RecordingView) RequireRejection(tx verify.Transaction) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejections = append(v.rejections, tx)
}

func (v *RecordingView) CloseVerification(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = append(v.closed, id)
}

func (v *RecordingView) SetActionsDisabled(id string, disabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disabled == nil {
		v.disabled = make(map[string]bool)
	}
	v.disabled[id] = disabled
}

func (v *RecordingView) Alert(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, message)
}

func (v *RecordingView) ShowTransactions(list []protocol.TransactionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lists = append(v.lists, list)
}

func (v *RecordingView) MarkNew(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.marked = append(v.marked, id)
}

func (v *RecordingView) ShowLogin() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loginShown++
}

func (v *RecordingView) ShowDashboard(c protocol.Cashier) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dashboards = append(v.dashboards, c)
}

// Verifications returns the verification prompts shown.
func (v *RecordingView) Verifications() []verify.Transaction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]verify.Transaction(nil), v.verifications...)
}

// Adjustments returns the adjustment prompts shown.
func (v *RecordingView) Adjustments() []verify.Transaction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]verify.Transaction(nil), v.adjustments...)
}

// Rejections returns the forced-rejection prompts shown.
func (v *RecordingView) Rejections() []verify.Transaction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]verify.Transaction(nil), v.rejections...)
}

// Closed returns the ids whose verification prompt was closed.
func (v *RecordingView) Closed() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.closed...)
}

// Alerts returns every alert shown.
func (v *RecordingView) Alerts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}

// Disabled reports whether id's controls are currently disabled.
func (v *RecordingView) Disabled(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disabled[id]
}

// Lists returns every transaction list rendered.
func (v *RecordingView) Lists() [][]protocol.TransactionSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][]protocol.TransactionSummary(nil), v.lists...)
}

// Marked returns the ids marked as new.
func (v *RecordingView) Marked() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.marked...)
}

// LoginShown returns how many times the login screen was shown.
func (v *RecordingView) LoginShown() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loginShown
}

// Dashboards returns the cashiers the dashboard was shown for.
func (v *RecordingView) Dashboards() []protocol.Cashier {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]protocol.Cashier(nil), v.dashboards...)
}
