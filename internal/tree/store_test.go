package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

func newStore(t *testing.T, listing string) *Store {
	t.Helper()
	s := New()
	s.Rebuild(tmux.ParseTopology(listing))
	return s
}

func TestRebuild_FromListing(t *testing.T) {
	s := newStore(t, "$1@1%1\n$1@1%2\ngarbage\n")

	assert.Equal(t, []tmux.SessionID{1}, s.Sessions())
	assert.True(t, s.HasSession(1))
	assert.False(t, s.HasSession(2))
	assert.Equal(t, []tmux.WindowID{1}, s.Windows())

	panes, err := s.Panes(1)
	require.NoError(t, err)
	assert.Equal(t, []tmux.PaneID{1, 2}, panes)

	for _, p := range panes {
		got, err := s.PaneTitle(p)
		require.NoError(t, err)
		assert.Equal(t, "", got)
	}
}

func TestSetPaneTitle_ReturnsWindow(t *testing.T) {
	s := newStore(t, "$0@0%0\n$0@1%1\n$0@1%2\n")

	w, err := s.SetPaneTitle(2, "alice@titan")
	require.NoError(t, err)
	assert.Equal(t, tmux.WindowID(1), w)

	got, changed, err := s.SetWindowTitle(w)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "alice@titan", got)

	_, changed, err = s.SetWindowTitle(w)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetPaneTitle_UnknownPane(t *testing.T) {
	s := newStore(t, "$0@0%0\n")
	_, err := s.SetPaneTitle(99, "x")
	assert.True(t, errors.Is(err, ErrUnknownPane))
}

func TestWindowTitle_Grouping(t *testing.T) {
	s := newStore(t, "$0@3%1\n$0@3%2\n$0@3%3\n")
	_, _ = s.SetPaneTitle(1, "x")
	_, _ = s.SetPaneTitle(2, "x")
	_, _ = s.SetPaneTitle(3, "y")

	got, changed, err := s.SetWindowTitle(3)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "x x 2 y", got)

	stored, err := s.WindowTitle(3)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestRemovePane_KeepsSiblingOrder(t *testing.T) {
	s := newStore(t, "$0@0%1\n$0@0%2\n$0@0%3\n")
	_, _ = s.SetPaneTitle(1, "a")
	_, _ = s.SetPaneTitle(3, "b")

	w, err := s.RemovePane(2)
	require.NoError(t, err)
	assert.Equal(t, tmux.WindowID(0), w)

	panes, err := s.Panes(0)
	require.NoError(t, err)
	assert.Equal(t, []tmux.PaneID{1, 3}, panes)

	_, err = s.WindowOf(2)
	assert.ErrorIs(t, err, ErrUnknownPane)

	got, _, err := s.SetWindowTitle(0)
	require.NoError(t, err)
	assert.Equal(t, "a b", got)
}

func TestRemovePane_UnknownLeavesStoreUnchanged(t *testing.T) {
	s := newStore(t, "$0@0%1\n$0@0%2\n")
	before := s.Snapshot()

	_, err := s.RemovePane(7)
	assert.ErrorIs(t, err, ErrUnknownPane)
	assert.Equal(t, before, s.Snapshot())
}

func TestRemovePane_DropsEmptyWindow(t *testing.T) {
	s := newStore(t, "$0@0%1\n$0@1%2\n")

	w, err := s.RemovePane(2)
	require.NoError(t, err)
	assert.Equal(t, tmux.WindowID(1), w)
	assert.Equal(t, []tmux.WindowID{0}, s.Windows())

	_, _, err = s.SetWindowTitle(1)
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

func TestRebuild_KeepsPersistingTitles(t *testing.T) {
	s := newStore(t, "$0@0%1\n$0@0%2\n")
	_, _ = s.SetPaneTitle(1, "alice@titan")
	_, _, _ = s.SetWindowTitle(0)

	// pane 2 goes away, pane 3 appears in a new window
	changed := s.Rebuild(tmux.ParseTopology("$0@0%1\n$0@5%3\n"))
	assert.Empty(t, changed, "window 0 keeps its title and window 5 is untitled")

	got, err := s.PaneTitle(1)
	require.NoError(t, err)
	assert.Equal(t, "alice@titan", got)

	got, err = s.PaneTitle(3)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = s.PaneTitle(2)
	assert.ErrorIs(t, err, ErrUnknownPane)
}

func TestRebuild_ReportsChangedWindows(t *testing.T) {
	s := newStore(t, "$0@0%1\n$0@0%2\n")
	_, _ = s.SetPaneTitle(1, "a")
	_, _ = s.SetPaneTitle(2, "b")
	_, _, _ = s.SetWindowTitle(0)

	// pane 2 moved to its own window
	changed := s.Rebuild(tmux.ParseTopology("$0@0%1\n$0@4%2\n"))
	assert.Equal(t, []tmux.WindowID{0, 4}, changed)

	got, err := s.WindowTitle(0)
	require.NoError(t, err)
	assert.Equal(t, "a", got)
	got, err = s.WindowTitle(4)
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestWindowTitle_UnknownWindow(t *testing.T) {
	s := New()
	_, err := s.WindowTitle(1)
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

func TestSnapshot(t *testing.T) {
	s := newStore(t, "$0@0%1\n$0@0%2\n$2@3%4\n")
	_, _ = s.SetPaneTitle(1, "x")
	_, _ = s.SetPaneTitle(2, "x")
	_, _, _ = s.SetWindowTitle(0)

	snap := s.Snapshot()
	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, "$0", snap.Sessions[0].ID)
	require.Len(t, snap.Sessions[0].Windows, 1)
	assert.Equal(t, "@0", snap.Sessions[0].Windows[0].ID)
	assert.Equal(t, "x x 2", snap.Sessions[0].Windows[0].Title)
	assert.Equal(t, []PaneSnapshot{{ID: "%1", Title: "x"}, {ID: "%2", Title: "x"}}, snap.Sessions[0].Windows[0].Panes)
	assert.Equal(t, "$2", snap.Sessions[1].ID)
	assert.Equal(t, 3, snap.PaneCount())

	// the snapshot is detached from the store
	_, _ = s.RemovePane(4)
	assert.Len(t, snap.Sessions[1].Windows[0].Panes, 1)
}
