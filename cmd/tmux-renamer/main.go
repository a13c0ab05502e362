package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/config"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/daemon"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/notify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

const Version = "0.1.0"

// clientTimeout bounds notify, status and scan.
const clientTimeout = 3 * time.Second

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		os.Exit(handleRun(nil))
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("tmux-renamer v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "run":
		os.Exit(handleRun(args[1:]))
	case "notify":
		handleNotify(args[1:])
	case "status":
		handleStatus(args[1:])
	case "scan":
		handleScan(args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			os.Exit(handleRun(args))
		}
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

// handleRun starts the daemon and returns the process exit code.
func handleRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFlag := fs.String("config", "", "Config file (default $TMUX_RENAMER_CONFIG or ~/.config/tmux-renamer/config.toml)")
	socketFlag := fs.String("socket", "", "Notification socket path (overrides config)")
	debug := fs.Bool("debug", false, "Debug logging, mirrored to stderr when it is a terminal")
	usePTY := fs.Bool("pty", false, "Attach control clients through a pseudo-terminal")

	fs.Usage = func() {
		fmt.Println("Usage: tmux-renamer run [--config file] [--socket path] [--debug] [--pty]")
		fmt.Println()
		fmt.Println("Run the renaming daemon in the foreground.")
		fmt.Println()
		fs.PrintDefaults()
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 1
	}

	configPath, err := resolveConfigPath(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, cfgErr := config.Load(configPath)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
	}
	cfg.SocketPath = firstNonEmpty(*socketFlag, cfg.SocketPath)
	if *usePTY {
		cfg.Attach.UsePTY = true
	}

	logCfg := cfg.LogConfig()
	if *debug {
		logCfg.Level = "debug"
		logCfg.Debug = true
		logCfg.Console = term.IsTerminal(int(os.Stderr.Fd()))
	}
	logging.Init(logCfg)
	defer logging.Shutdown()
	log.SetOutput(logging.NewBridgeWriter(logging.CompDaemon))

	mainLog := logging.ForComponent(logging.CompDaemon)
	if cfgErr != nil {
		mainLog.Warn("config_invalid", slog.String("path", configPath), slog.String("error", cfgErr.Error()))
	}

	crashDir := firstNonEmpty(logCfg.LogDir, os.TempDir())

	// SIGUSR1 dumps the ring buffer for post-mortem debugging
	usr1Chan := make(chan os.Signal, 1)
	signal.Notify(usr1Chan, syscall.SIGUSR1)
	defer signal.Stop(usr1Chan)
	go func() {
		for range usr1Chan {
			dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				mainLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				mainLog.Info("crash_dump_written", slog.String("path", dumpPath))
			}
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := daemon.Run(ctx, daemon.Options{Config: cfg, ConfigPath: configPath}); err != nil {
		fmt.Fprintf(os.Stderr, "tmux-renamer: %v\n", err)
		if errors.Is(err, notify.ErrSocketInUse) {
			fmt.Fprintln(os.Stderr, "Another tmux-renamer daemon is already running.")
		}
		_ = logging.DumpRingBuffer(filepath.Join(crashDir, "crash.log"))
		return 1
	}
	return 0
}

func handleNotify(args []string) {
	fs := flag.NewFlagSet("notify", flag.ExitOnError)
	configFlag := fs.String("config", "", "Config file used to find the socket")
	socketFlag := fs.String("socket", "", "Notification socket path")
	quiet := fs.Bool("quiet", false, "Exit 0 without output when the daemon is unreachable (for tmux hooks)")

	fs.Usage = func() {
		fmt.Println("Usage: tmux-renamer notify [--socket path] [--quiet] <message...>")
		fmt.Println()
		fmt.Println("Send a notification to the running daemon. Messages:")
		fmt.Println("  layout changed")
		fmt.Println("  session created $<session-id>")
		fmt.Println("  remove pane <pane-id>")
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fs.Usage()
		os.Exit(1)
	}

	socketPath := firstNonEmpty(*socketFlag, loadConfigQuiet(*configFlag).SocketPath)
	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	if err := notify.Send(ctx, socketPath, text); err != nil {
		if *quiet {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configFlag := fs.String("config", "", "Config file used to find the socket")
	socketFlag := fs.String("socket", "", "Notification socket path")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: tmux-renamer status [--socket path] [--json]")
		fmt.Println()
		fmt.Println("Show the daemon's view of sessions, windows and pane titles.")
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	socketPath := firstNonEmpty(*socketFlag, loadConfigQuiet(*configFlag).SocketPath)
	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	reply, err := notify.Query(ctx, socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		out, _ := json.MarshalIndent(reply, "", "  ")
		fmt.Println(string(out))
		return
	}
	writeStatus(os.Stdout, reply)
}

func handleScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configFlag := fs.String("config", "", "Config file with [tmux] settings")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: tmux-renamer scan [--config file] [--json]")
		fmt.Println()
		fmt.Println("List the sessions, windows and panes the daemon would track.")
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	cfg := loadConfigQuiet(*configFlag)
	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	topo, err := tmux.Scan(ctx, tmux.NewExec(cfg.Tmux.Binary, cfg.Tmux.Socket, false))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		out, _ := json.MarshalIndent(topo, "", "  ")
		fmt.Println(string(out))
		return
	}
	writeTopology(os.Stdout, topo)
}

func printHelp() {
	fmt.Printf("tmux-renamer v%s\n", Version)
	fmt.Println("Names tmux windows after the shell prompts in their panes")
	fmt.Println()
	fmt.Println("Usage: tmux-renamer [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Run the daemon (default)")
	fmt.Println("  notify    Send a hook notification to the daemon")
	fmt.Println("  status    Show the daemon's tree")
	fmt.Println("  scan      List panes without starting the daemon")
	fmt.Println("  version   Show version")
	fmt.Println("  help      Show this help")
	fmt.Println()
	fmt.Println("tmux hooks (~/.tmux.conf):")
	for _, h := range hookSnippets {
		fmt.Printf("  set-hook -g %s 'run-shell \"tmux-renamer notify --quiet %s\"'\n", h.hook, h.message)
	}
}

// hookSnippets are the tmux hooks that keep the daemon's tree current.
// Every hook that creates, moves or destroys panes must send one of them.
var hookSnippets = []struct {
	hook    string
	message string
}{
	{"after-new-window", "layout changed"},
	{"after-split-window", "layout changed"},
	{"after-break-pane", "layout changed"},
	{"after-join-pane", "layout changed"},
	{"after-kill-pane", "layout changed"},
	{"session-created", "session created #{q:hook_session}"},
	{"pane-exited", "remove pane #{hook_pane}"},
}
