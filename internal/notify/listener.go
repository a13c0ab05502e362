package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/engine"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tree"
)

var notifyLog = logging.ForComponent(logging.CompNotify)

const (
	// DefaultSocketPath is where the daemon listens when not configured.
	DefaultSocketPath = "/tmp/tmux_renamer.sock"
	// DefaultReadTimeout bounds how long a connection may take to send its line.
	DefaultReadTimeout = 2 * time.Second

	maxLineBytes = 4096
)

// ErrSocketInUse means another daemon is already serving the socket.
var ErrSocketInUse = errors.New("notification socket in use")

// Engine is the part of the engine the listener drives.
type Engine interface {
	Push(ctx context.Context, in engine.Instruction) error
	RequestSnapshot(ctx context.Context) (tree.Snapshot, error)
}

// Attacher starts session readers.
type Attacher interface {
	Ensure(session tmux.SessionID) bool
	Active() []tmux.SessionID
}

// StatusReply is the JSON answer to a "status" request.
type StatusReply struct {
	Tree     tree.Snapshot `json:"tree"`
	Attached []string      `json:"attached"`
}

// Listener accepts one notification per connection on a unix socket.
type Listener struct {
	socketPath  string
	readTimeout time.Duration
	engine      Engine
	attacher    Attacher

	listener net.Listener
	wg       sync.WaitGroup
}

// NewListener creates a listener; call Listen and Serve (or Run) to start it.
func NewListener(socketPath string, eng Engine, att Attacher, readTimeout time.Duration) *Listener {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Listener{socketPath: socketPath, readTimeout: readTimeout, engine: eng, attacher: att}
}

// SocketPath returns the path the listener binds.
func (l *Listener) SocketPath() string {
	return l.socketPath
}

// isSocketAlive checks if a unix socket exists and is accepting connections
func isSocketAlive(socketPath string) bool {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Listen binds the socket. A stale socket file left by a previous run is
// removed; a live one belonging to another daemon is ErrSocketInUse.
func (l *Listener) Listen() error {
	if isSocketAlive(l.socketPath) {
		return fmt.Errorf("%w: %s", ErrSocketInUse, l.socketPath)
	}
	if err := os.Remove(l.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.socketPath, err)
	}
	l.listener = ln
	notifyLog.Info("socket_listening", slog.String("path", l.socketPath))
	return nil
}

// Serve runs the accept loop until ctx ends, then closes the socket,
// waits for in-flight connections and removes the socket file.
func (l *Listener) Serve(ctx context.Context) error {
	if l.listener == nil {
		return errors.New("listener not bound")
	}

	stop := context.AfterFunc(ctx, func() { l.listener.Close() })
	defer stop()
	defer func() {
		l.wg.Wait()
		_ = os.Remove(l.socketPath)
		notifyLog.Info("socket_closed", slog.String("path", l.socketPath))
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			notifyLog.Warn("accept_error", slog.String("error", err.Error()))
			return fmt.Errorf("accept: %w", err)
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handle(ctx, conn)
		}()
	}
}

// Run is Listen followed by Serve.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Listen(); err != nil {
		return err
	}
	return l.Serve(ctx)
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(l.readTimeout))

	line, err := bufio.NewReader(io.LimitReader(conn, maxLineBytes)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		logging.Aggregate(logging.CompNotify, logging.EventReadError, "")
		notifyLog.Debug("read_failed", slog.String("error", err.Error()))
		return
	}
	line = strings.TrimRight(line, "\r\n")

	req := Parse(line)
	logging.Aggregate(logging.CompNotify, logging.EventRequest, req.Kind.String())

	switch req.Kind {
	case Refresh:
		l.push(ctx, engine.Refresh{})
	case AttachTo:
		started := l.attacher.Ensure(req.Session)
		notifyLog.Debug("attach_requested",
			slog.String("session", req.Session.String()),
			slog.Bool("started", started))
		// the tree learns the new session's panes from a rescan
		l.push(ctx, engine.Refresh{})
	case RemovePane:
		l.push(ctx, engine.RemovePane{Pane: req.Pane})
	case Status:
		l.writeStatus(ctx, conn)
	default:
		notifyLog.Debug("request_ignored", slog.String("line", line))
	}
}

func (l *Listener) push(ctx context.Context, in engine.Instruction) {
	if err := l.engine.Push(ctx, in); err != nil {
		notifyLog.Debug("push_failed", slog.String("error", err.Error()))
	}
}

func (l *Listener) writeStatus(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithTimeout(ctx, l.readTimeout)
	defer cancel()

	snap, err := l.engine.RequestSnapshot(ctx)
	if err != nil {
		notifyLog.Warn("status_snapshot_failed", slog.String("error", err.Error()))
		return
	}
	reply := StatusReply{Tree: snap, Attached: []string{}}
	for _, id := range l.attacher.Active() {
		reply.Attached = append(reply.Attached, id.String())
	}
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		notifyLog.Debug("status_write_failed", slog.String("error", err.Error()))
	}
}
