package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iamp15/elpatio-appCajeros/internal/client"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
	"github.com/iamp15/elpatio-appCajeros/internal/verify"
)

var (
	// ErrUsage is returned for malformed commands.
	ErrUsage = errors.New("usage")
	// ErrUnknownCommand is returned for commands the shell does not know.
	ErrUnknownCommand = errors.New("unknown command")
)

// Actions is what the shell drives. *client.Client implements it.
type Actions interface {
	Login(email, password string)
	Refresh()
	VerifyFromList(id string)
	SubmitObserved(id string, observed protocol.Minor)
	SubmitAdjustment(id string, amount protocol.Minor, reason string)
	Confirm(id string)
	Reject(id string, in verify.RejectInput)
	ReferToAdmin(id, description string)
	Logout()
	Snapshot(ctx context.Context) (client.Snapshot, error)
}

const helpText = `Comandos:
  login <email> <contraseña>
  refresh
  open <id>
  observed <id> <monto>
  adjust <id> <monto> [razón]
  confirm <id>
  reject <id> [@imagen] <motivo>
  refer <id> <descripción>
  status
  logout
  quit`

// Shell parses one command per line.
type Shell struct {
	actions Actions
	view    *View
	// ReadFile loads rejection evidence. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// NewShell returns a shell driving actions and reporting through view.
func NewShell(actions Actions, view *View) *Shell {
	return &Shell{actions: actions, view: view, ReadFile: os.ReadFile}
}

// Run reads commands from r until EOF, "quit" or ctx is done.
func (s *Shell) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := s.Execute(ctx, sc.Text())
		if err != nil {
			s.view.Alert(err.Error())
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// Execute runs a single command line. It reports whether the shell should
// stop.
func (s *Shell) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		s.view.Print(helpText)
	case "quit", "exit":
		return true, nil
	case "login":
		if len(args) != 2 {
			return false, usage("login <email> <contraseña>")
		}
		s.actions.Login(args[0], args[1])
	case "logout":
		s.actions.Logout()
	case "refresh":
		s.actions.Refresh()
	case "open":
		if len(args) != 1 {
			return false, usage("open <id>")
		}
		s.actions.VerifyFromList(args[0])
	case "confirm":
		if len(args) != 1 {
			return false, usage("confirm <id>")
		}
		s.actions.Confirm(args[0])
	case "observed":
		if len(args) != 2 {
			return false, usage("observed <id> <monto>")
		}
		amount, err := protocol.ParseDisplay(args[1])
		if err != nil {
			return false, err
		}
		s.actions.SubmitObserved(args[0], amount)
	case "adjust":
		if len(args) < 2 {
			return false, usage("adjust <id> <monto> [razón]")
		}
		amount, err := protocol.ParseDisplay(args[1])
		if err != nil {
			return false, err
		}
		s.actions.SubmitAdjustment(args[0], amount, strings.Join(args[2:], " "))
	case "reject":
		return false, s.reject(args)
	case "refer":
		if len(args) < 2 {
			return false, usage("refer <id> <descripción>")
		}
		s.actions.ReferToAdmin(args[0], strings.Join(args[1:], " "))
	case "status":
		snap, err := s.actions.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		s.view.PrintData("status", snap)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	return false, nil
}

func (s *Shell) reject(args []string) error {
	if len(args) < 2 {
		return usage("reject <id> [@imagen] <motivo>")
	}
	id, rest := args[0], args[1:]

	var in verify.RejectInput
	if path, ok := strings.CutPrefix(rest[0], "@"); ok {
		if path == "" || len(rest) < 2 {
			return usage("reject <id> [@imagen] <motivo>")
		}
		data, err := s.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading evidence: %w", err)
		}
		in.Evidence = &protocol.Evidence{Filename: filepath.Base(path), Data: data}
		rest = rest[1:]
	}
	in.Reason = strings.Join(rest, " ")
	s.actions.Reject(id, in)
	return nil
}

func usage(syntax string) error {
	return fmt.Errorf("%w: %s", ErrUsage, syntax)
}
