package main

import (
	"bytes"
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/notify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tree"
)

func TestNormalizeArgs(t *testing.T) {
	fs := flag.NewFlagSet("notify", flag.ContinueOnError)
	fs.String("socket", "", "")
	fs.Bool("quiet", false, "")

	got := normalizeArgs(fs, []string{"remove", "pane", "%3", "--quiet", "--socket", "/tmp/s.sock"})
	assert.Equal(t, []string{"--quiet", "--socket", "/tmp/s.sock", "remove", "pane", "%3"}, got)

	got = normalizeArgs(fs, []string{"--socket=/x", "--", "--not-a-flag"})
	assert.Equal(t, []string{"--socket=/x", "--not-a-flag"}, got)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}

func TestWriteStatus(t *testing.T) {
	store := tree.New()
	store.Rebuild(tmux.ParseTopology("$1@1%1\n$1@1%2\n"))
	_, _ = store.SetPaneTitle(1, "alice@titan")
	_, _, _ = store.SetWindowTitle(1)

	var buf bytes.Buffer
	writeStatus(&buf, notify.StatusReply{Tree: store.Snapshot(), Attached: []string{"$1"}})

	want := "$1 (attached)\n" +
		"  @1     alice@titan\n" +
		"    %1     alice@titan\n" +
		"    %2     -\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	writeStatus(&buf, notify.StatusReply{})
	assert.Equal(t, "No sessions\n", buf.String())
}

func TestWriteTopology(t *testing.T) {
	var buf bytes.Buffer
	writeTopology(&buf, tmux.ParseTopology("$0@0%0\n$0@0%1\n$2@3%4\n"))
	assert.Equal(t, "$0 @0 %0 %1\n$2 @3 %4\n2 sessions, 2 windows, 3 panes\n", buf.String())
}

func TestHookSnippets(t *testing.T) {
	hooks := map[string]bool{}
	for _, h := range hookSnippets {
		hooks[h.hook] = true

		// what the daemon receives once tmux and the shell expanded the formats
		line := strings.NewReplacer("#{q:hook_session}", "$3", "#{hook_pane}", "%7").Replace(h.message)
		assert.NotEqual(t, notify.Ignore, notify.Parse(line).Kind, h.hook)
	}

	for _, want := range []string{"after-new-window", "after-split-window", "after-kill-pane", "session-created", "pane-exited"} {
		require.True(t, hooks[want], want)
	}
}
