// Package notice carries user-visible messages from the client core to
// whatever renders them (console, desktop toast, browser notification).
package notice

import (
	"log/slog"
	"sync"
)

// Level is the severity a notice is rendered with.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient message for the cashier.
type Notice struct {
	Level         Level  `json:"level"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	// Critical notices must reach the cashier even when the app is in the
	// background.
	Critical bool `json:"critical,omitempty"`
}

// Notifier renders notices. Implementations must not block.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

func Info(title, message string) Notice {
	return Notice{Level: LevelInfo, Title: title, Message: message}
}

func Success(title, message string) Notice {
	return Notice{Level: LevelSuccess, Title: title, Message: message}
}

func Warning(title, message string) Notice {
	return Notice{Level: LevelWarning, Title: title, Message: message}
}

func Error(title, message string) Notice {
	return Notice{Level: LevelError, Title: title, Message: message}
}

// Multi fans a notice out to several notifiers in order.
type Multi []Notifier

// Notify forwards n to every notifier.
func (m Multi) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Log writes notices to slog. Used when no interactive renderer is attached.
type Log struct {
	Logger *slog.Logger
}

// Notify logs n at a level matching its severity.
func (l Log) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"title", n.Title, "message", n.Message}
	if n.TransactionID != "" {
		attrs = append(attrs, "transaction", n.TransactionID)
	}
	switch n.Level {
	case LevelError:
		logger.Error("notice", attrs...)
	case LevelWarning:
		logger.Warn("notice", attrs...)
	default:
		logger.Info("notice", attrs...)
	}
}

// Recorder keeps every notice in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify records n.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many notices of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == level {
			n++
		}
	}
	return n
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
