package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iamp15/elpatio-appCajeros/internal/config"
	"github.com/iamp15/elpatio-appCajeros/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal       string
	Session       string
	TransactionID string
	Kind          string // optional - filter to one kind
}

// TraceEntry is one journal entry as shown by trace.
type TraceEntry struct {
	Session       string          `json:"session"`
	Seq           int64           `json:"seq"`
	Direction     string          `json:"direction"`
	Kind          string          `json:"kind"`
	RequestID     string          `json:"request_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session       string       `json:"session,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Entries       []TraceEntry `json:"entries"`
	Stats         TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total    int `json:"total"`
	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`
	Local    int `json:"local"`
}

// SessionSummary is one line of the session listing.
type SessionSummary struct {
	ID      string    `json:"id"`
	Entries int       `json:"entries"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read the session journal",
		Long: `Read back what the client journaled.

Without --session or --transaction, lists the journaled sessions, most
recent first. With --session, shows every frame and local decision of that
session in order. With --transaction, shows everything that referenced the
transaction across sessions.

Examples:
  cajero trace --journal ./cajero-journal.db
  cajero trace --session 0192f3a4-... --kind confirmar-pago-cajero
  cajero trace --transaction 66f0c0ffee --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (overrides config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to show")
	cmd.Flags().StringVar(&opts.TransactionID, "transaction", "", "transaction id to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show entries of this kind")
	cmd.MarkFlagsMutuallyExclusive("session", "transaction")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := Output{Format: opts.Format, Writer: cmd.OutOrStdout()}

	path := opts.Journal
	if path == "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		path = cfg.JournalPath
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Session == "" && opts.TransactionID == "" {
		return listSessions(ctx, j, out)
	}

	var entries []journal.Entry
	if opts.Session != "" {
		entries, err = j.ReadSession(ctx, opts.Session)
	} else {
		entries, err = j.ReadTransaction(ctx, opts.TransactionID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildTrace(entries, opts.Kind)
	result.Session = opts.Session
	result.TransactionID = opts.TransactionID

	if out.JSON() {
		return out.Success(result)
	}
	w := cmd.OutOrStdout()
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return nil
	}
	for _, e := range result.Entries {
		fmt.Fprintln(w, formatEntry(e))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Entries: %d (in %d, out %d, local %d)\n",
		result.Stats.Total, result.Stats.Inbound, result.Stats.Outbound, result.Stats.Local)
	return nil
}

// buildTrace converts entries, keeping only kind when it is not empty.
func buildTrace(entries []journal.Entry, kind string) TraceResult {
	result := TraceResult{Entries: []TraceEntry{}}
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		result.Entries = append(result.Entries, TraceEntry{
			Session:       e.SessionID,
			Seq:           e.Seq,
			Direction:     string(e.Direction),
			Kind:          e.Kind,
			RequestID:     e.RequestID,
			TransactionID: e.TransactionID,
			Payload:       e.Payload,
			RecordedAt:    e.RecordedAt,
		})
		switch e.Direction {
		case journal.DirectionIn:
			result.Stats.Inbound++
		case journal.DirectionOut:
			result.Stats.Outbound++
		default:
			result.Stats.Local++
		}
	}
	result.Stats.Total = len(result.Entries)
	return result
}

func formatEntry(e TraceEntry) string {
	arrow := "·"
	switch e.Direction {
	case string(journal.DirectionIn):
		arrow = "←"
	case string(journal.DirectionOut):
		arrow = "→"
	}
	line := fmt.Sprintf("%5d %s %s %s", e.Seq, e.RecordedAt.Format("15:04:05.000"), arrow, e.Kind)
	if e.TransactionID != "" {
		line += " [" + e.TransactionID + "]"
	}
	if len(e.Payload) > 0 && string(e.Payload) != "{}" {
		line += " " + string(e.Payload)
	}
	return line
}

func listSessions(ctx context.Context, j *journal.Journal, out Output) error {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	summaries := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = SessionSummary{ID: s.ID, Entries: s.Entries, First: s.First, Last: s.Last}
	}
	if out.JSON() {
		return out.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out.Writer, "No sessions found.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out.Writer, "%s  %4d entries  %s .. %s\n",
			s.ID, s.Entries, s.First.Format(time.DateTime), s.Last.Format(time.DateTime))
	}
	return nil
}
