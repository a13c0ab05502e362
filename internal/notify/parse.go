// Package notify implements the unix-socket endpoint that tmux hooks use
// to tell the daemon about layout changes, new sessions and closed panes.
package notify

import (
	"regexp"
	"strconv"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

// Kind is the type of a parsed notification.
type Kind int

const (
	Ignore Kind = iota
	Refresh
	AttachTo
	RemovePane
	Status
)

func (k Kind) String() string {
	switch k {
	case Refresh:
		return "refresh"
	case AttachTo:
		return "attach_to"
	case RemovePane:
		return "remove_pane"
	case Status:
		return "status"
	default:
		return "ignore"
	}
}

// Request is one parsed notification line.
type Request struct {
	Kind    Kind
	Session tmux.SessionID
	Pane    tmux.PaneID
}

var (
	layoutChangedRe  = regexp.MustCompile(`^\s*layout\s+changed\s*`)
	sessionCreatedRe = regexp.MustCompile(`^\s*session\s+created\s+\$(\d+)\s*$`)
	removePaneRe     = regexp.MustCompile(`^\s*remove\s+pane\s+%?(\d+)\s*`)
	statusRe         = regexp.MustCompile(`^\s*status\s*$`)
)

// Parse maps a notification line to a request. Anything unrecognised,
// including ids that do not fit in 32 bits, is Ignore.
func Parse(line string) Request {
	if layoutChangedRe.MatchString(line) {
		return Request{Kind: Refresh}
	}
	if m := sessionCreatedRe.FindStringSubmatch(line); m != nil {
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return Request{Kind: Ignore}
		}
		return Request{Kind: AttachTo, Session: tmux.SessionID(id)}
	}
	if m := removePaneRe.FindStringSubmatch(line); m != nil {
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return Request{Kind: Ignore}
		}
		return Request{Kind: RemovePane, Pane: tmux.PaneID(id)}
	}
	if statusRe.MatchString(line) {
		return Request{Kind: Status}
	}
	return Request{Kind: Ignore}
}
