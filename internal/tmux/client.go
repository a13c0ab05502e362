package tmux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
)

var clientLog = logging.ForComponent(logging.CompTopology)

// Sentinel errors returned by the multiplexer client. Callers use errors.Is.
var (
	// ErrQueryFailed means the topology query could not be run.
	ErrQueryFailed = errors.New("tmux query failed")
	// ErrCommandFailed means a rename or attach invocation failed.
	ErrCommandFailed = errors.New("tmux command failed")
	// ErrNoData is a transient condition: the attached stream has nothing
	// to read right now. Retry after a short delay.
	ErrNoData = errors.New("no data available")
	// ErrStreamEnded means the attached control client exited, normally
	// because its session was destroyed.
	ErrStreamEnded = errors.New("control stream ended")
)

// PaneListFormat is the list-panes format producing one "$S@W%P" token per pane.
const PaneListFormat = "#{session_id}#{window_id}#{pane_id}"

// Client is the capability the engine needs from tmux. The exec-backed
// implementation is Exec; tests substitute fakes.
type Client interface {
	// ListPanes returns the raw output of the all-panes topology query.
	ListPanes(ctx context.Context) (string, error)
	// RenameWindow sets the name of window to title.
	RenameWindow(ctx context.Context, window WindowID, title string) error
	// RestoreAutoRename hands the name of window back to tmux.
	RestoreAutoRename(ctx context.Context, window WindowID) error
	// Attach opens a control-mode stream on session.
	Attach(ctx context.Context, session SessionID) (Stream, error)
}

// Stream is a line-oriented control-mode event feed.
//
// ReadLine returns ErrNoData when nothing arrived within the stream's poll
// interval and ErrStreamEnded once the control client is gone.
type Stream interface {
	ReadLine() (string, error)
	Close() error
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
	}
	return out, err
}

// Exec runs the tmux binary for every operation.
type Exec struct {
	// Binary is the tmux executable (default "tmux").
	Binary string
	// Socket is passed as -S when set, selecting a non-default server.
	Socket string
	// UsePTY attaches control clients through a pseudo-terminal instead of pipes.
	UsePTY bool

	run     commandRunner
	listing singleflight.Group
}

// NewExec creates an exec-backed client.
func NewExec(binary, socket string, usePTY bool) *Exec {
	if strings.TrimSpace(binary) == "" {
		binary = "tmux"
	}
	return &Exec{Binary: binary, Socket: socket, UsePTY: usePTY, run: runCommand}
}

func (e *Exec) baseArgs() []string {
	if strings.TrimSpace(e.Socket) == "" {
		return []string{}
	}
	return []string{"-S", e.Socket}
}

func (e *Exec) runner() commandRunner {
	if e.run == nil {
		return runCommand
	}
	return e.run
}

// ListPanes runs list-panes -a. Concurrent callers share one subprocess.
func (e *Exec) ListPanes(ctx context.Context) (string, error) {
	v, err, shared := e.listing.Do("list-panes", func() (interface{}, error) {
		args := append(e.baseArgs(), "list-panes", "-a", "-F", PaneListFormat)
		out, err := e.runner()(ctx, e.Binary, args...)
		if err != nil {
			return "", fmt.Errorf("%w: list-panes: %w", ErrQueryFailed, err)
		}
		return string(out), nil
	})
	if shared {
		clientLog.Debug("list_panes_shared")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RenameWindow runs rename-window -t @N.
func (e *Exec) RenameWindow(ctx context.Context, window WindowID, title string) error {
	args := append(e.baseArgs(), "rename-window", "-t", window.String(), "--", title)
	if _, err := e.runner()(ctx, e.Binary, args...); err != nil {
		return fmt.Errorf("%w: rename-window %s: %w", ErrCommandFailed, window, err)
	}
	clientLog.Debug("rename_window", slog.String("window", window.String()), slog.String("title", title))
	return nil
}

// RestoreAutoRename turns automatic-rename back on for window. rename-window
// switches it off, so this is how a window loses a name set by us.
func (e *Exec) RestoreAutoRename(ctx context.Context, window WindowID) error {
	args := append(e.baseArgs(), "set-option", "-w", "-t", window.String(), "automatic-rename", "on")
	if _, err := e.runner()(ctx, e.Binary, args...); err != nil {
		return fmt.Errorf("%w: automatic-rename %s: %w", ErrCommandFailed, window, err)
	}
	clientLog.Debug("restore_auto_rename", slog.String("window", window.String()))
	return nil
}

// Attach starts "tmux -C attach-session -t $N" and returns its event stream.
func (e *Exec) Attach(ctx context.Context, session SessionID) (Stream, error) {
	args := append(e.baseArgs(), "-C", "attach-session", "-t", session.String())
	pipe, err := NewControlPipe(ctx, session, e.Binary, args, e.UsePTY)
	if err != nil {
		return nil, fmt.Errorf("%w: attach %s: %w", ErrCommandFailed, session, err)
	}
	return pipe, nil
}
