// Package attach keeps one control-mode reader per tmux session and feeds
// every line it reads into the engine queue.
package attach

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/engine"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

var attachLog = logging.ForComponent(logging.CompAttach)

// DefaultRetryDelay is the pause after a read that returned no data.
const DefaultRetryDelay = 10 * time.Millisecond

// Sink receives the instructions produced by readers.
type Sink interface {
	Push(ctx context.Context, in engine.Instruction) error
}

// Supervisor owns the reader goroutines. Ensure is safe to call from any
// goroutine.
type Supervisor struct {
	ctx        context.Context
	client     tmux.Client
	sink       Sink
	retryDelay time.Duration

	mu      sync.Mutex
	readers map[tmux.SessionID]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a supervisor whose readers live until ctx ends or their
// session goes away.
func New(ctx context.Context, client tmux.Client, sink Sink, retryDelay time.Duration) *Supervisor {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Supervisor{
		ctx:        ctx,
		client:     client,
		sink:       sink,
		retryDelay: retryDelay,
		readers:    make(map[tmux.SessionID]context.CancelFunc),
	}
}

// Ensure starts a reader for session unless one is already running.
// It reports whether a reader was started.
func (s *Supervisor) Ensure(session tmux.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readers[session]; ok {
		return false
	}
	if s.ctx.Err() != nil {
		return false
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.readers[session] = cancel
	s.wg.Add(1)
	go s.read(ctx, session)

	attachLog.Debug("reader_started", slog.String("session", session.String()))
	return true
}

// EnsureAll calls Ensure for every session and returns how many readers
// were started.
func (s *Supervisor) EnsureAll(sessions []tmux.SessionID) int {
	started := 0
	for _, id := range sessions {
		if s.Ensure(id) {
			started++
		}
	}
	return started
}

// Detach stops the reader for session, if any.
func (s *Supervisor) Detach(session tmux.SessionID) {
	s.mu.Lock()
	cancel, ok := s.readers[session]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active returns the sessions that currently have a reader, sorted.
func (s *Supervisor) Active() []tmux.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]tmux.SessionID, 0, len(s.readers))
	for id := range s.readers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Wait blocks until every reader has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) deregister(session tmux.SessionID) {
	s.mu.Lock()
	if cancel, ok := s.readers[session]; ok {
		cancel()
		delete(s.readers, session)
	}
	s.mu.Unlock()
}

func (s *Supervisor) read(ctx context.Context, session tmux.SessionID) {
	defer s.wg.Done()
	defer s.deregister(session)

	stream, err := s.client.Attach(ctx, session)
	if err != nil {
		attachLog.Warn("attach_failed",
			slog.String("session", session.String()),
			slog.String("error", err.Error()))
		return
	}
	defer stream.Close()

	lines := 0
	for ctx.Err() == nil {
		line, err := stream.ReadLine()
		switch {
		case err == nil:
			if err := s.sink.Push(ctx, engine.ProcessLine{Line: line}); err != nil {
				return
			}
			lines++
		case errors.Is(err, tmux.ErrNoData):
			logging.Aggregate(logging.CompAttach, logging.EventReadRetry, session.String())
			select {
			case <-ctx.Done():
			case <-time.After(s.retryDelay):
			}
		case errors.Is(err, tmux.ErrStreamEnded), errors.Is(err, io.EOF):
			attachLog.Debug("reader_stream_ended",
				slog.String("session", session.String()),
				slog.Int("lines", lines))
			return
		default:
			attachLog.Warn("reader_failed",
				slog.String("session", session.String()),
				slog.String("error", err.Error()))
			return
		}
	}
}
