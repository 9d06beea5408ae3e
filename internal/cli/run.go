package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iamp15/elpatio-appCajeros/internal/backend"
	"github.com/iamp15/elpatio-appCajeros/internal/client"
	"github.com/iamp15/elpatio-appCajeros/internal/config"
	"github.com/iamp15/elpatio-appCajeros/internal/console"
	"github.com/iamp15/elpatio-appCajeros/internal/journal"
	"github.com/iamp15/elpatio-appCajeros/internal/logout"
	"github.com/iamp15/elpatio-appCajeros/internal/loop"
	"github.com/iamp15/elpatio-appCajeros/internal/notice"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/session"
	"github.com/iamp15/elpatio-appCajeros/internal/status"
	"github.com/iamp15/elpatio-appCajeros/internal/supervisor"
	"github.com/iamp15/elpatio-appCajeros/internal/transport"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal    string
	StatusAddr string
	Token      string
	NoConsole  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the cashier client",
		Long: `Start the cashier client.

The client connects to the realtime service, keeps the session authenticated,
and reads cashier commands from standard input. Every frame and local decision
is journaled to SQLite; a status endpoint reports the connection state.

Example:
  cajero run --config cajero.yaml
  cajero run --journal /tmp/cajero.db --status-addr 127.0.0.1:9000 --verbose
  cajero run --token "$CAJERO_TOKEN" --no-console`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (overrides config)")
	cmd.Flags().StringVar(&opts.StatusAddr, "status-addr", "", "status endpoint address (overrides config)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "resume a session with this token instead of logging in")
	cmd.Flags().BoolVar(&opts.NoConsole, "no-console", false, "do not read commands from standard input")

	return cmd
}

func runClient(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	setupLogging(opts.RootOptions, cfg.SlogLevel())

	slog.Info("opening journal", "path", cfg.JournalPath)
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	view := console.NewView(cmd.OutOrStdout(), opts.Format)
	app := wire(ctx, cfg, j, view)

	var srv *status.Server
	if cfg.StatusAddr != "" {
		srv, err = status.Listen(cfg.StatusAddr, app.client)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start status endpoint", err)
		}
		go func() {
			if err := srv.Serve(); err != nil {
				slog.Error("status endpoint stopped", "error", err)
			}
		}()
		slog.Info("status endpoint listening", "addr", srv.Addr())
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- app.loop.Run(ctx) }()

	if opts.Token != "" {
		app.client.Resume(opts.Token, protocol.Cashier{})
	} else {
		view.ShowLogin()
	}

	if !opts.NoConsole {
		go func() {
			shell := console.NewShell(app.client, view)
			if err := shell.Run(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, io.EOF) {
				slog.Warn("console stopped", "error", err)
			}
			cancel()
		}()
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Cajero started. Type 'help' for commands, Ctrl-C to stop.")
	loopErr := <-loopDone

	// The loop has stopped: finish in-flight work (journal writes included),
	// then drop the session without a remote logout.
	app.loop.Settle()
	app.client.Teardown()

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("status endpoint shutdown", "error", err)
		}
	}

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) && !errors.Is(loopErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "event loop error", loopErr)
	}
	slog.Info("client stopped gracefully")
	return nil
}

func loadConfig(opts *RunOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Journal != "" {
		cfg.JournalPath = opts.Journal
	}
	if opts.StatusAddr != "" {
		cfg.StatusAddr = opts.StatusAddr
	}
	return cfg, nil
}

// app is one wired client.
type app struct {
	loop   *loop.Loop
	client *client.Client
}

// wire builds the client and its collaborators from cfg.
func wire(ctx context.Context, cfg config.Config, j *journal.Journal, view *console.View) *app {
	l := loop.New()
	sessions := session.NewStore(time.Now)
	notifier := notice.Multi{view, notice.Log{}}
	rec := journal.NewRecorder(ctx, j, l, sessions.ID)

	sup := supervisor.New(l,
		transport.NewWebSocket(cfg.ServerURL, cfg.Origin, cfg.DialTimeout),
		sessions,
		supervisor.WithRetry(cfg.AuthRetryAttempts, cfg.AuthRetryDelay),
		supervisor.WithNotifier(notifier),
		supervisor.WithObserver(rec),
		supervisor.WithContext(ctx),
	)
	api := backend.New(backend.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.HTTPTimeout})

	c := client.New(client.Deps{
		Loop:       l,
		Supervisor: sup,
		Sessions:   sessions,
		Backend:    api,
		View:       view,
		Notifier:   notifier,
		Journal:    rec,
		IsUnauthorized: func(err error) bool {
			return errors.Is(err, backend.ErrUnauthorized)
		},
		Context: ctx,
	}, clientConfig(cfg))
	c.Init()
	return &app{loop: l, client: c}
}

func clientConfig(cfg config.Config) client.Config {
	return client.Config{
		Verify: verify.Config{
			AdjustAckGuard:   cfg.AdjustAckGuard,
			OperationTimeout: cfg.OperationTimeout,
			DefaultMinimum:   protocol.FromDisplay(cfg.DefaultMinimumDeposit),
			MaxEvidenceBytes: cfg.MaxEvidenceBytes,
		},
		LogoutTimeout: orDuration(cfg.LogoutAckTimeout, logout.DefaultAckTimeout),
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
