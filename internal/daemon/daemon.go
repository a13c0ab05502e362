// Package daemon wires the scanner, tree, readers, serializer, listener
// and config watcher into one running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/attach"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/classify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/config"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/engine"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/notify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tree"
)

var daemonLog = logging.ForComponent(logging.CompDaemon)

// Options configures Run.
type Options struct {
	// Config is the loaded configuration. Required.
	Config *config.Config
	// ConfigPath enables hot reload of [[patterns]] when set.
	ConfigPath string
	// Client replaces the exec-backed tmux client (tests).
	Client tmux.Client
	// Ready, when set, is closed once the socket is listening and the
	// initial readers are started.
	Ready chan<- struct{}
}

// Run performs the startup scan, attaches to every session and serves
// until ctx is cancelled or a component fails. The startup scan failing is
// fatal and reported as tmux.ErrQueryFailed.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		return errors.New("daemon: nil config")
	}
	client := opts.Client
	if client == nil {
		client = tmux.NewExec(cfg.Tmux.Binary, cfg.Tmux.Socket, cfg.Attach.UsePTY)
	}

	topo, err := tmux.Scan(ctx, client)
	if err != nil {
		return fmt.Errorf("startup scan: %w", err)
	}
	store := tree.New()
	store.Rebuild(topo)

	patterns := classify.Compile(cfg.Patterns)
	if len(patterns) == 0 {
		daemonLog.Warn("no_patterns", slog.Int("configured", len(cfg.Patterns)))
	}

	queue := engine.NewQueue(cfg.Engine.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	sup := attach.New(gctx, client, queue, cfg.RetryDelay())
	ser := engine.NewSerializer(client, store, classify.New(patterns), queue, engine.Options{
		RatePerSec: cfg.RenameRate(),
		Burst:      cfg.Rename.Burst,
		MaxWidth:   cfg.Title.MaxWidth,
		OnRebuild: func(sessions []tmux.SessionID) {
			if n := sup.EnsureAll(sessions); n > 0 {
				daemonLog.Info("readers_started_after_refresh", slog.Int("count", n))
			}
		},
	})

	listener := notify.NewListener(cfg.SocketPath, queue, sup, cfg.ReadTimeout())
	if err := listener.Listen(); err != nil {
		return err
	}

	g.Go(func() error { return ser.Run(gctx) })
	g.Go(func() error { return listener.Serve(gctx) })

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, func(c *config.Config) {
			if err := queue.Push(gctx, engine.ReloadPatterns{Patterns: classify.Compile(c.Patterns)}); err != nil {
				daemonLog.Debug("reload_dropped", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			daemonLog.Warn("config_watch_disabled", slog.String("error", err.Error()))
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	started := sup.EnsureAll(topo.Sessions)
	daemonLog.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", listener.SocketPath()),
		slog.Int("sessions", len(topo.Sessions)),
		slog.Int("windows", len(topo.Windows)),
		slog.Int("readers", started),
		slog.Int("patterns", len(patterns)))

	if opts.Ready != nil {
		close(opts.Ready)
	}

	err = g.Wait()
	sup.Wait()
	if err != nil {
		daemonLog.Error("daemon_failed", slog.String("error", err.Error()))
		return err
	}
	daemonLog.Info("daemon_stopped")
	return nil
}
