// Package classify recognises shell prompts in control-mode output lines.
package classify

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

var classifyLog = logging.ForComponent(logging.CompEngine)

// DefaultTitanRegex matches "%output %<pane> <user>@titan:~$" lines.
const DefaultTitanRegex = `^%output\s+%(\d+)\s+([A-Za-z\d]+)@titan:~\$\s*$`

// RawPattern is the configuration form of a prompt pattern.
type RawPattern struct {
	Name          string `toml:"name"`
	Regex         string `toml:"regex"`
	Parameterized bool   `toml:"parameterized"`
	// Template, when set, is expanded with regexp.Expand ($2, ${user}) to
	// build the title instead of the default.
	Template string `toml:"template"`
}

// Pattern is a compiled prompt pattern.
//
// Capture group 1 must be the pane id. A parameterized pattern uses group 2
// as the user and titles the pane "<user>@<name>"; a plain pattern titles
// the pane with its name.
type Pattern struct {
	Name          string
	Regex         *regexp.Regexp
	Parameterized bool
	Template      string
}

// Match is a classified line.
type Match struct {
	Pane    tmux.PaneID
	Title   string
	Pattern string
}

// DefaultPatterns returns the built-in patterns.
func DefaultPatterns() []RawPattern {
	return []RawPattern{
		{Name: "titan", Regex: DefaultTitanRegex, Parameterized: true},
	}
}

// Compile compiles raw patterns in order. Invalid regexes, patterns
// without a pane capture group and parameterized patterns without a user
// group are logged as warnings and skipped (never fatal).
func Compile(raws []RawPattern) []Pattern {
	patterns := make([]Pattern, 0, len(raws))
	for _, raw := range raws {
		p, err := compileOne(raw)
		if err != nil {
			classifyLog.Warn("invalid_pattern",
				slog.String("name", raw.Name),
				slog.String("regex", raw.Regex),
				slog.String("error", err.Error()))
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}

func compileOne(raw RawPattern) (Pattern, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return Pattern{}, fmt.Errorf("pattern has no name")
	}
	re, err := regexp.Compile(raw.Regex)
	if err != nil {
		return Pattern{}, err
	}
	if re.NumSubexp() < 1 {
		return Pattern{}, fmt.Errorf("pattern %q has no pane capture group", name)
	}
	if raw.Parameterized && raw.Template == "" && re.NumSubexp() < 2 {
		return Pattern{}, fmt.Errorf("parameterized pattern %q has no user capture group", name)
	}
	return Pattern{Name: name, Regex: re, Parameterized: raw.Parameterized, Template: raw.Template}, nil
}

// Classifier applies an ordered pattern list; the first match wins.
type Classifier struct {
	patterns []Pattern
}

// New creates a classifier over already compiled patterns.
func New(patterns []Pattern) *Classifier {
	return &Classifier{patterns: patterns}
}

// Len returns the number of active patterns.
func (c *Classifier) Len() int {
	return len(c.patterns)
}

// Names returns the pattern names in priority order.
func (c *Classifier) Names() []string {
	names := make([]string, len(c.patterns))
	for i, p := range c.patterns {
		names[i] = p.Name
	}
	return names
}

// Classify reports the pane and title for line, or false when no pattern
// matches. The first matching pattern decides: if its pane group is not a
// valid id the line is unclassified, later patterns are not tried.
func (c *Classifier) Classify(line string) (Match, bool) {
	for _, p := range c.patterns {
		idx := p.Regex.FindStringSubmatchIndex(line)
		if idx == nil || idx[2] < 0 {
			continue
		}
		pane, err := strconv.ParseUint(line[idx[2]:idx[3]], 10, 32)
		if err != nil {
			classifyLog.Debug("pane_group_invalid", slog.String("pattern", p.Name))
			return Match{}, false
		}
		return Match{Pane: tmux.PaneID(pane), Title: p.title(line, idx), Pattern: p.Name}, true
	}
	return Match{}, false
}

func (p Pattern) title(line string, idx []int) string {
	if p.Template != "" {
		return string(p.Regex.ExpandString(nil, p.Template, line, idx))
	}
	if p.Parameterized && len(idx) >= 6 && idx[4] >= 0 {
		return line[idx[4]:idx[5]] + "@" + p.Name
	}
	return p.Name
}
