package tmux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
)

var pipeLog = logging.ForComponent(logging.CompAttach)

// DefaultPollInterval bounds how long ReadLine waits before reporting ErrNoData.
const DefaultPollInterval = 250 * time.Millisecond

// ControlPipe wraps a persistent `tmux -C attach-session -t $N` process and
// exposes its output one line at a time.
type ControlPipe struct {
	session SessionID
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser

	lines        chan string
	pollInterval time.Duration

	mu    sync.RWMutex
	alive bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	waitOnce  sync.Once
}

// NewControlPipe starts the control client described by binary and args.
// With usePTY the client gets a pseudo-terminal for stdin/stdout, otherwise
// plain pipes. The pipe is closed when ctx is cancelled.
func NewControlPipe(ctx context.Context, session SessionID, binary string, args []string, usePTY bool) (*ControlPipe, error) {
	cmd := exec.Command(binary, args...)

	cp := &ControlPipe{
		session:      session,
		cmd:          cmd,
		lines:        make(chan string, 64),
		pollInterval: DefaultPollInterval,
		alive:        true,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	if usePTY {
		// pty.Start puts the child in its own session, so its pgid is its pid.
		ptmx, err := startPTY(cmd)
		if err != nil {
			return nil, fmt.Errorf("start pty: %w", err)
		}
		cp.stdin = ptmx
		cp.stdout = ptmx
	} else {
		// Own process group so Close can kill tmux and anything it forked.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			stdin.Close()
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return nil, fmt.Errorf("start %s: %w", binary, err)
		}
		cp.stdin = stdin
		cp.stdout = stdout
	}

	go cp.reader()
	go func() {
		select {
		case <-ctx.Done():
			cp.Close()
		case <-cp.done:
		}
	}()

	pipeLog.Debug("pipe_connected", slog.String("session", session.String()), slog.Bool("pty", usePTY))
	return cp, nil
}

// reader forwards every line of the control client's output to cp.lines.
// Lines are delivered raw (minus the trailing CR), control lines included.
func (cp *ControlPipe) reader() {
	defer func() {
		cp.mu.Lock()
		cp.alive = false
		cp.mu.Unlock()
		close(cp.lines)
		cp.wait()
		close(cp.done)
		pipeLog.Debug("pipe_reader_exited", slog.String("session", cp.session.String()))
	}()

	scanner := bufio.NewScanner(cp.stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		select {
		case cp.lines <- line:
		case <-cp.stop:
			return
		}
	}

	// EIO from a pty master is how a closed terminal reports end of stream.
	if err := scanner.Err(); err != nil && !isClosedTerminal(err) {
		pipeLog.Debug("pipe_scanner_error", slog.String("session", cp.session.String()), slog.String("error", err.Error()))
	}
}

func isClosedTerminal(err error) bool {
	return strings.Contains(err.Error(), "input/output error") || strings.Contains(err.Error(), "file already closed")
}

func (cp *ControlPipe) wait() {
	cp.waitOnce.Do(func() {
		_ = cp.cmd.Wait()
	})
}

// ReadLine returns the next line. It reports ErrNoData when no line arrived
// within the poll interval and ErrStreamEnded after the client exited and
// all buffered lines were consumed.
func (cp *ControlPipe) ReadLine() (string, error) {
	timer := time.NewTimer(cp.pollInterval)
	defer timer.Stop()

	select {
	case line, ok := <-cp.lines:
		if !ok {
			return "", ErrStreamEnded
		}
		return line, nil
	case <-timer.C:
		return "", ErrNoData
	}
}

// Session returns the session this pipe is attached to.
func (cp *ControlPipe) Session() SessionID {
	return cp.session
}

// IsAlive returns true while the control client is running.
func (cp *ControlPipe) IsAlive() bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.alive
}

// Done returns a channel that closes when the control client has exited.
func (cp *ControlPipe) Done() <-chan struct{} {
	return cp.done
}

// Close detaches the control client and kills its process group.
// It is safe to call more than once.
func (cp *ControlPipe) Close() error {
	cp.closeOnce.Do(func() {
		close(cp.stop)

		cp.mu.Lock()
		cp.alive = false
		cp.mu.Unlock()

		// closing stdin tells tmux to detach
		cp.stdin.Close()

		if cp.cmd.Process != nil {
			pgid, err := syscall.Getpgid(cp.cmd.Process.Pid)
			if err == nil {
				_ = syscall.Kill(-pgid, syscall.SIGKILL)
			} else {
				_ = cp.cmd.Process.Kill()
			}
		}
		cp.wait()

		pipeLog.Debug("pipe_closed", slog.String("session", cp.session.String()))
	})
	return nil
}
