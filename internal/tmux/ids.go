package tmux

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionID is tmux's numeric session identifier ($N).
type SessionID uint32

// WindowID is tmux's numeric window identifier (@N).
type WindowID uint32

// PaneID is tmux's numeric pane identifier (%N).
type PaneID uint32

// String renders the sigil form used as a tmux target, e.g. "$3".
func (id SessionID) String() string { return "$" + strconv.FormatUint(uint64(id), 10) }

func (id WindowID) String() string { return "@" + strconv.FormatUint(uint64(id), 10) }

func (id PaneID) String() string { return "%" + strconv.FormatUint(uint64(id), 10) }

// ParseSessionID accepts "3" or "$3".
func ParseSessionID(s string) (SessionID, error) {
	v, err := parseID(s, "$")
	return SessionID(v), err
}

// ParseWindowID accepts "3" or "@3".
func ParseWindowID(s string) (WindowID, error) {
	v, err := parseID(s, "@")
	return WindowID(v), err
}

// ParsePaneID accepts "3" or "%3".
func ParsePaneID(s string) (PaneID, error) {
	v, err := parseID(s, "%")
	return PaneID(v), err
}

func parseID(s, sigil string) (uint32, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), sigil)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", sigil, s, err)
	}
	return uint32(v), nil
}
