package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/classify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/title"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tree"
)

var engineLog = logging.ForComponent(logging.CompEngine)

// Options tunes a Serializer. Zero values select the defaults.
type Options struct {
	// RatePerSec limits rename-window invocations. Zero disables the limit.
	RatePerSec float64
	// Burst is the limiter burst size (default 1 when limited).
	Burst int
	// MaxWidth truncates titles passed to tmux. Zero disables truncation.
	MaxWidth int
	// OnRebuild is called with the session list after every successful
	// Refresh, from the serializer goroutine.
	OnRebuild func(sessions []tmux.SessionID)
}

// Serializer is the only goroutine that touches the tree or renames
// windows. Instructions are applied one at a time in queue order.
type Serializer struct {
	client     tmux.Client
	store      *tree.Store
	classifier *classify.Classifier
	queue      *Queue
	limiter    *rate.Limiter
	opts       Options

	// applied holds the title tmux last accepted per window. A window
	// missing here carries tmux's own name.
	applied map[tmux.WindowID]string
}

// NewSerializer takes ownership of store. Callers must not touch it again
// except through Snapshot instructions.
func NewSerializer(client tmux.Client, store *tree.Store, classifier *classify.Classifier, queue *Queue, opts Options) *Serializer {
	limit := rate.Inf
	burst := opts.Burst
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		if burst <= 0 {
			burst = 1
		}
	}
	if classifier == nil {
		classifier = classify.New(nil)
	}
	return &Serializer{
		client:     client,
		store:      store,
		classifier: classifier,
		queue:      queue,
		limiter:    rate.NewLimiter(limit, burst),
		opts:       opts,
		applied:    make(map[tmux.WindowID]string),
	}
}

// Run applies instructions until ctx is cancelled. The instruction in
// progress is finished first. Run returns nil on cancellation.
func (s *Serializer) Run(ctx context.Context) error {
	engineLog.Info("serializer_started",
		slog.Int("queue_capacity", s.queue.Cap()),
		slog.Int("patterns", s.classifier.Len()))
	for {
		select {
		case <-ctx.Done():
			engineLog.Info("serializer_stopped", slog.Int("pending", s.queue.Len()))
			return nil
		case in := <-s.queue.ch:
			s.apply(ctx, in)
		}
	}
}

func (s *Serializer) apply(ctx context.Context, in Instruction) {
	start := time.Now()
	switch in := in.(type) {
	case ProcessLine:
		s.processLine(ctx, in.Line)
	case RemovePane:
		s.removePane(ctx, in.Pane)
	case Refresh:
		s.refresh(ctx)
	case ReloadPatterns:
		s.classifier = classify.New(in.Patterns)
		engineLog.Info("patterns_reloaded", slog.Any("names", s.classifier.Names()))
	case Snapshot:
		select {
		case in.Reply <- s.store.Snapshot():
		case <-ctx.Done():
		}
	default:
		engineLog.Warn("unknown_instruction", slog.String("type", in.kind()))
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		logging.ForComponent(logging.CompPerf).Warn("slow_instruction",
			slog.String("type", in.kind()),
			slog.Duration("elapsed", elapsed))
	}
}

func (s *Serializer) processLine(ctx context.Context, line string) {
	m, ok := s.classifier.Classify(line)
	if !ok {
		logging.Aggregate(logging.CompEngine, logging.EventLineIgnored, "")
		return
	}
	window, err := s.store.SetPaneTitle(m.Pane, m.Title)
	if err != nil {
		engineLog.Debug("pane_title_dropped",
			slog.String("pane", m.Pane.String()),
			slog.String("error", err.Error()))
		return
	}
	engineLog.Debug("pane_classified",
		slog.String("pane", m.Pane.String()),
		slog.String("pattern", m.Pattern),
		slog.String("title", m.Title))
	s.retitle(ctx, window)
}

func (s *Serializer) removePane(ctx context.Context, pane tmux.PaneID) {
	window, err := s.store.RemovePane(pane)
	if err != nil {
		engineLog.Debug("remove_pane_dropped",
			slog.String("pane", pane.String()),
			slog.String("error", err.Error()))
		return
	}
	s.retitle(ctx, window)
}

func (s *Serializer) refresh(ctx context.Context) {
	topo, err := tmux.Scan(ctx, s.client)
	if err != nil {
		engineLog.Warn("refresh_failed", slog.String("error", err.Error()))
		return
	}
	changed := s.store.Rebuild(topo)
	engineLog.Debug("tree_rebuilt",
		slog.Int("windows", len(topo.Windows)),
		slog.Int("changed", len(changed)))
	live := make(map[tmux.WindowID]bool, len(topo.Windows))
	for _, w := range s.store.Windows() {
		live[w] = true
		t, err := s.store.WindowTitle(w)
		if err != nil {
			continue
		}
		s.applyTitle(ctx, w, t)
	}
	for w := range s.applied {
		if !live[w] {
			delete(s.applied, w)
		}
	}
	if s.opts.OnRebuild != nil {
		s.opts.OnRebuild(s.store.Sessions())
	}
}

// retitle recomputes a window title and pushes it to tmux when it differs
// from what tmux last accepted.
func (s *Serializer) retitle(ctx context.Context, window tmux.WindowID) {
	t, _, err := s.store.SetWindowTitle(window)
	if errors.Is(err, tree.ErrUnknownWindow) {
		// last pane removed, window is gone
		delete(s.applied, window)
		return
	}
	if err != nil {
		return
	}
	s.applyTitle(ctx, window, t)
}

// applyTitle renames window to t. An empty t hands the name back to tmux.
// Failures leave applied untouched so the next identical title retries.
func (s *Serializer) applyTitle(ctx context.Context, window tmux.WindowID, t string) {
	if prev := s.applied[window]; prev == t {
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	if t == "" {
		if err := s.client.RestoreAutoRename(ctx, window); err != nil {
			engineLog.Warn("restore_name_failed",
				slog.String("window", window.String()),
				slog.String("error", err.Error()))
			return
		}
		delete(s.applied, window)
		engineLog.Info("window_released", slog.String("window", window.String()))
		return
	}
	if err := s.client.RenameWindow(ctx, window, title.Truncate(t, s.opts.MaxWidth)); err != nil {
		engineLog.Warn("rename_failed",
			slog.String("window", window.String()),
			slog.String("error", err.Error()))
		return
	}
	s.applied[window] = t
	engineLog.Info("window_renamed",
		slog.String("window", window.String()),
		slog.String("title", t))
}
