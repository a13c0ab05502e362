package tree

// Snapshot is a detached copy of the tree, safe to hand to other goroutines
// and encode as JSON.
type Snapshot struct {
	Sessions []SessionSnapshot `json:"sessions"`
}

// SessionSnapshot is one session and its windows.
type SessionSnapshot struct {
	ID      string           `json:"id"`
	Windows []WindowSnapshot `json:"windows"`
}

// WindowSnapshot is one window with its synthesized title.
type WindowSnapshot struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Panes []PaneSnapshot `json:"panes"`
}

// PaneSnapshot is one pane with its classified title.
type PaneSnapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Snapshot copies the tree. Sessions keep scan order and windows are
// grouped under the session they were discovered in.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Sessions: make([]SessionSnapshot, 0, len(s.sessions))}
	index := make(map[string]int, len(s.sessions))
	for _, sid := range s.sessions {
		index[sid.String()] = len(snap.Sessions)
		snap.Sessions = append(snap.Sessions, SessionSnapshot{ID: sid.String(), Windows: []WindowSnapshot{}})
	}

	for _, wid := range s.order {
		w := s.windows[wid]
		ws := WindowSnapshot{ID: wid.String(), Title: w.title, Panes: make([]PaneSnapshot, 0, len(w.panes))}
		for _, p := range w.panes {
			ws.Panes = append(ws.Panes, PaneSnapshot{ID: p.String(), Title: s.titles[p]})
		}
		i, ok := index[w.session.String()]
		if !ok {
			continue
		}
		snap.Sessions[i].Windows = append(snap.Sessions[i].Windows, ws)
	}
	return snap
}

// PaneCount returns the number of panes in the snapshot.
func (s Snapshot) PaneCount() int {
	n := 0
	for _, sess := range s.Sessions {
		for _, w := range sess.Windows {
			n += len(w.Panes)
		}
	}
	return n
}
