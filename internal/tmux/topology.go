package tmux

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var topologyLine = regexp.MustCompile(`^\$(\d+)@(\d+)%(\d+)\s*$`)

// WindowPanes is one window of a topology scan with its panes in the
// order tmux listed them.
type WindowPanes struct {
	Session SessionID
	Window  WindowID
	Panes   []PaneID
}

// Topology is the parsed result of the all-panes listing.
type Topology struct {
	Sessions []SessionID
	Windows  []WindowPanes
}

// PaneCount returns the number of distinct panes in the topology.
func (t Topology) PaneCount() int {
	n := 0
	for _, w := range t.Windows {
		n += len(w.Panes)
	}
	return n
}

// Scan queries tmux for every pane of every session and parses the result.
// It fails only when the query itself cannot be run.
func Scan(ctx context.Context, client Client) (Topology, error) {
	out, err := client.ListPanes(ctx)
	if err != nil {
		return Topology{}, err
	}
	topo := ParseTopology(out)
	clientLog.Debug("topology_scanned",
		slog.Int("sessions", len(topo.Sessions)),
		slog.Int("windows", len(topo.Windows)),
		slog.Int("panes", topo.PaneCount()))
	return topo, nil
}

// ParseTopology parses list-panes output made with PaneListFormat.
// Lines that do not match (including the trailing blank line) are skipped.
// A window linked into several sessions is listed once, under the first
// session it was seen in.
func ParseTopology(output string) Topology {
	var topo Topology
	seenSession := make(map[SessionID]bool)
	windowIdx := make(map[WindowID]int)
	seenPane := make(map[PaneID]bool)

	skipped := 0
	for _, line := range strings.Split(output, "\n") {
		m := topologyLine.FindStringSubmatch(line)
		if m == nil {
			if strings.TrimSpace(line) != "" {
				skipped++
			}
			continue
		}
		s, errS := strconv.ParseUint(m[1], 10, 32)
		w, errW := strconv.ParseUint(m[2], 10, 32)
		p, errP := strconv.ParseUint(m[3], 10, 32)
		if errS != nil || errW != nil || errP != nil {
			skipped++
			continue
		}
		session, window, pane := SessionID(s), WindowID(w), PaneID(p)

		if !seenSession[session] {
			seenSession[session] = true
			topo.Sessions = append(topo.Sessions, session)
		}
		idx, ok := windowIdx[window]
		if !ok {
			idx = len(topo.Windows)
			windowIdx[window] = idx
			topo.Windows = append(topo.Windows, WindowPanes{Session: session, Window: window})
		}
		if seenPane[pane] {
			continue
		}
		seenPane[pane] = true
		topo.Windows[idx].Panes = append(topo.Windows[idx].Panes, pane)
	}
	if skipped > 0 {
		clientLog.Debug("topology_lines_skipped", slog.Int("count", skipped))
	}
	return topo
}
