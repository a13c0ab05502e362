package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/notify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

// writeStatus renders a daemon status reply as an indented tree.
func writeStatus(w io.Writer, reply notify.StatusReply) {
	attached := make(map[string]bool, len(reply.Attached))
	for _, id := range reply.Attached {
		attached[id] = true
	}

	if len(reply.Tree.Sessions) == 0 {
		fmt.Fprintln(w, "No sessions")
		return
	}
	for _, s := range reply.Tree.Sessions {
		marker := ""
		if attached[s.ID] {
			marker = " (attached)"
		}
		fmt.Fprintf(w, "%s%s\n", s.ID, marker)
		for _, win := range s.Windows {
			fmt.Fprintf(w, "  %-6s %s\n", win.ID, displayTitle(win.Title))
			for _, p := range win.Panes {
				fmt.Fprintf(w, "    %-6s %s\n", p.ID, displayTitle(p.Title))
			}
		}
	}
}

// writeTopology renders a scan as one line per window.
func writeTopology(w io.Writer, topo tmux.Topology) {
	if len(topo.Windows) == 0 {
		fmt.Fprintln(w, "No panes")
		return
	}
	for _, win := range topo.Windows {
		panes := make([]string, len(win.Panes))
		for i, p := range win.Panes {
			panes[i] = p.String()
		}
		fmt.Fprintf(w, "%s %s %s\n", win.Session, win.Window, strings.Join(panes, " "))
	}
	fmt.Fprintf(w, "%d sessions, %d windows, %d panes\n", len(topo.Sessions), len(topo.Windows), topo.PaneCount())
}

func displayTitle(t string) string {
	if t == "" {
		return "-"
	}
	return t
}
