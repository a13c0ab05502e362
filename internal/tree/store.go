// Package tree holds the session/window/pane graph of the tmux server.
//
// A Store is a plain data structure without locks. It is owned by the
// engine's serializer goroutine; everything else reads copies obtained
// through Snapshot.
package tree

import (
	"errors"
	"fmt"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/title"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

var (
	// ErrUnknownPane means the pane is not part of any known window.
	ErrUnknownPane = errors.New("unknown pane")
	// ErrUnknownWindow means the window is not in the store.
	ErrUnknownWindow = errors.New("unknown window")
)

type window struct {
	session tmux.SessionID
	panes   []tmux.PaneID
	title   string
}

// Store is the tree of sessions, windows and panes.
type Store struct {
	sessions []tmux.SessionID
	order    []tmux.WindowID
	windows  map[tmux.WindowID]*window
	titles   map[tmux.PaneID]string

	// paneWindow is derived from the window pane lists by reindex.
	paneWindow map[tmux.PaneID]tmux.WindowID
}

// New returns an empty store.
func New() *Store {
	return &Store{
		windows:    make(map[tmux.WindowID]*window),
		titles:     make(map[tmux.PaneID]string),
		paneWindow: make(map[tmux.PaneID]tmux.WindowID),
	}
}

// Rebuild replaces the tree with topo. Panes that persist keep their
// titles, new panes start untitled and vanished panes are dropped.
// It returns the windows whose synthesized title differs from the title
// they had before, in discovery order; a new window counts as changed
// when its title is not empty.
func (s *Store) Rebuild(topo tmux.Topology) []tmux.WindowID {
	oldTitles := s.titles
	oldWindows := s.windows

	s.sessions = append([]tmux.SessionID(nil), topo.Sessions...)
	s.order = make([]tmux.WindowID, 0, len(topo.Windows))
	s.windows = make(map[tmux.WindowID]*window, len(topo.Windows))
	s.titles = make(map[tmux.PaneID]string, topo.PaneCount())

	for _, wp := range topo.Windows {
		w := &window{session: wp.Session, panes: append([]tmux.PaneID(nil), wp.Panes...)}
		if prev, ok := oldWindows[wp.Window]; ok {
			w.title = prev.title
		}
		s.order = append(s.order, wp.Window)
		s.windows[wp.Window] = w
		for _, p := range wp.Panes {
			s.titles[p] = oldTitles[p]
		}
	}
	s.reindex()

	var changed []tmux.WindowID
	for _, id := range s.order {
		w := s.windows[id]
		next := s.synthesize(w)
		if next != w.title {
			w.title = next
			changed = append(changed, id)
		}
	}
	return changed
}

func (s *Store) reindex() {
	s.paneWindow = make(map[tmux.PaneID]tmux.WindowID, len(s.titles))
	for _, id := range s.order {
		for _, p := range s.windows[id].panes {
			s.paneWindow[p] = id
		}
	}
}

func (s *Store) synthesize(w *window) string {
	titles := make([]string, len(w.panes))
	for i, p := range w.panes {
		titles[i] = s.titles[p]
	}
	return title.Window(titles)
}

// WindowOf returns the window that owns pane.
func (s *Store) WindowOf(pane tmux.PaneID) (tmux.WindowID, error) {
	id, ok := s.paneWindow[pane]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPane, pane)
	}
	return id, nil
}

// SetPaneTitle records the classified title of pane and returns its window.
func (s *Store) SetPaneTitle(pane tmux.PaneID, t string) (tmux.WindowID, error) {
	id, err := s.WindowOf(pane)
	if err != nil {
		return 0, err
	}
	s.titles[pane] = t
	return id, nil
}

// PaneTitle returns the classified title of pane ("" when unclassified).
func (s *Store) PaneTitle(pane tmux.PaneID) (string, error) {
	if _, err := s.WindowOf(pane); err != nil {
		return "", err
	}
	return s.titles[pane], nil
}

// RemovePane detaches pane from its window, keeping the order of its
// siblings. A window left without panes is dropped. On ErrUnknownPane the
// store is unchanged.
func (s *Store) RemovePane(pane tmux.PaneID) (tmux.WindowID, error) {
	id, err := s.WindowOf(pane)
	if err != nil {
		return 0, err
	}
	w := s.windows[id]
	for i, p := range w.panes {
		if p == pane {
			w.panes = append(w.panes[:i], w.panes[i+1:]...)
			break
		}
	}
	delete(s.titles, pane)
	delete(s.paneWindow, pane)

	if len(w.panes) == 0 {
		delete(s.windows, id)
		for i, wid := range s.order {
			if wid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return id, nil
}

// WindowTitle returns the title last stored for window.
func (s *Store) WindowTitle(id tmux.WindowID) (string, error) {
	w, ok := s.windows[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownWindow, id)
	}
	return w.title, nil
}

// SetWindowTitle recomputes the title of window from its panes, stores it
// and reports whether it changed.
func (s *Store) SetWindowTitle(id tmux.WindowID) (string, bool, error) {
	w, ok := s.windows[id]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownWindow, id)
	}
	next := s.synthesize(w)
	if next == w.title {
		return next, false, nil
	}
	w.title = next
	return next, true, nil
}

// Sessions returns the sessions from the last rebuild.
func (s *Store) Sessions() []tmux.SessionID {
	return append([]tmux.SessionID(nil), s.sessions...)
}

// HasSession reports whether id was seen in the last rebuild.
func (s *Store) HasSession(id tmux.SessionID) bool {
	for _, sid := range s.sessions {
		if sid == id {
			return true
		}
	}
	return false
}

// Windows returns the window ids in discovery order.
func (s *Store) Windows() []tmux.WindowID {
	return append([]tmux.WindowID(nil), s.order...)
}

// Panes returns the panes of window in order.
func (s *Store) Panes(id tmux.WindowID) ([]tmux.PaneID, error) {
	w, ok := s.windows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWindow, id)
	}
	return append([]tmux.PaneID(nil), w.panes...), nil
}
