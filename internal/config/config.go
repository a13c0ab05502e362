// Package config loads the daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/classify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "TMUX_RENAMER_CONFIG"
	// FileName is the config file name inside the config directory.
	FileName = "config.toml"
	// AppDir names the per-user config and state directories.
	AppDir = "tmux-renamer"

	DefaultSocketPath  = "/tmp/tmux_renamer.sock"
	DefaultQueueSize   = 100
	DefaultRetryMS     = 10
	DefaultReadTimeout = 2000
	DefaultRatePerSec  = 20
	DefaultBurst       = 5
)

// Config is the whole configuration file.
type Config struct {
	// SocketPath is the notification socket (default /tmp/tmux_renamer.sock)
	SocketPath string `toml:"socket_path"`

	Tmux   TmuxSettings   `toml:"tmux"`
	Attach AttachSettings `toml:"attach"`
	Engine EngineSettings `toml:"engine"`
	Rename RenameSettings `toml:"rename"`
	Title  TitleSettings  `toml:"title"`
	Notify NotifySettings `toml:"notify"`
	Logs   LogSettings    `toml:"logs"`

	// Patterns are tried in order; the first match titles the pane.
	// When the key is absent the built-in titan pattern is used.
	Patterns []classify.RawPattern `toml:"patterns"`
}

// TmuxSettings selects the tmux binary and server.
type TmuxSettings struct {
	// Binary is the tmux executable (default "tmux")
	Binary string `toml:"binary"`
	// Socket is passed to tmux as -S when set
	Socket string `toml:"socket"`
}

// AttachSettings configures the control-mode readers.
type AttachSettings struct {
	// UsePTY runs control clients on a pseudo-terminal instead of pipes
	UsePTY bool `toml:"use_pty"`
	// RetryDelayMS is the pause after an empty read (default 10)
	RetryDelayMS int `toml:"retry_delay_ms"`
}

type EngineSettings struct {
	QueueSize int `toml:"queue_size"`
}

// RenameSettings rate limits rename-window. RatePerSec < 0 disables the limit.
type RenameSettings struct {
	RatePerSec float64 `toml:"rate_per_sec"`
	Burst      int     `toml:"burst"`
}

type TitleSettings struct {
	// MaxWidth truncates window titles to this many cells; 0 is unlimited
	MaxWidth int `toml:"max_width"`
}

type NotifySettings struct {
	ReadTimeoutMS int `toml:"read_timeout_ms"`
}

// LogSettings mirrors logging.Config.
type LogSettings struct {
	// Dir defaults to ~/.local/state/tmux-renamer
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	// Compress rotated files. Default: true
	Compress              *bool `toml:"compress"`
	RingBufferKB          int   `toml:"ring_buffer_kb"`
	AggregateIntervalSecs int   `toml:"aggregate_interval_secs"`
	PprofEnabled          bool  `toml:"pprof_enabled"`
}

// GetCompress returns whether rotated logs are compressed, defaulting to true.
func (l LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	c.Patterns = classify.DefaultPatterns()
	return c
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.SocketPath) == "" {
		c.SocketPath = DefaultSocketPath
	}
	if strings.TrimSpace(c.Tmux.Binary) == "" {
		c.Tmux.Binary = "tmux"
	}
	if c.Attach.RetryDelayMS <= 0 {
		c.Attach.RetryDelayMS = DefaultRetryMS
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = DefaultQueueSize
	}
	if c.Rename.RatePerSec == 0 {
		c.Rename.RatePerSec = DefaultRatePerSec
	}
	if c.Rename.Burst <= 0 {
		c.Rename.Burst = DefaultBurst
	}
	if c.Title.MaxWidth < 0 {
		c.Title.MaxWidth = 0
	}
	if c.Notify.ReadTimeoutMS <= 0 {
		c.Notify.ReadTimeoutMS = DefaultReadTimeout
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.Format == "" {
		c.Logs.Format = "json"
	}
}

// DefaultPath returns $TMUX_RENAMER_CONFIG or ~/.config/tmux-renamer/config.toml.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppDir, FileName), nil
}

// DefaultLogDir returns ~/.local/state/tmux-renamer, or "" when the home
// directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", AppDir)
}

// Load reads the config file at path. A missing file yields the defaults.
// A file that fails to parse also yields the defaults, together with the
// parse error so the caller can report it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Default(), fmt.Errorf("%s parse error: %w", filepath.Base(path), err)
	}
	if !md.IsDefined("patterns") {
		c.Patterns = classify.DefaultPatterns()
	}
	c.applyDefaults()
	return &c, nil
}

// RetryDelay is the attach retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Attach.RetryDelayMS) * time.Millisecond
}

// ReadTimeout is the notification read deadline as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Notify.ReadTimeoutMS) * time.Millisecond
}

// RenameRate returns the limiter rate; 0 means unlimited.
func (c *Config) RenameRate() float64 {
	if c.Rename.RatePerSec < 0 {
		return 0
	}
	return c.Rename.RatePerSec
}

// LogConfig converts the [logs] table into a logging.Config.
func (c *Config) LogConfig() logging.Config {
	dir := c.Logs.Dir
	if dir == "" {
		dir = DefaultLogDir()
	}
	return logging.Config{
		LogDir:                dir,
		Level:                 c.Logs.Level,
		Format:                c.Logs.Format,
		MaxSizeMB:             c.Logs.MaxSizeMB,
		MaxBackups:            c.Logs.MaxBackups,
		MaxAgeDays:            c.Logs.MaxAgeDays,
		Compress:              c.Logs.GetCompress(),
		RingBufferSize:        c.Logs.RingBufferKB * 1024,
		AggregateIntervalSecs: c.Logs.AggregateIntervalSecs,
		PprofEnabled:          c.Logs.PprofEnabled,
	}
}
