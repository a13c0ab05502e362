package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Request
	}{
		{"layout changed", Request{Kind: Refresh}},
		{"  layout   changed @3 ", Request{Kind: Refresh}},
		{"session created $5", Request{Kind: AttachTo, Session: 5}},
		{" session  created  $12  ", Request{Kind: AttachTo, Session: 12}},
		{"remove pane %7", Request{Kind: RemovePane, Pane: 7}},
		{"remove pane 7", Request{Kind: RemovePane, Pane: 7}},
		{"remove pane %7 extra", Request{Kind: RemovePane, Pane: 7}},
		{"status", Request{Kind: Status}},
		{"  status ", Request{Kind: Status}},
		{"hello", Request{Kind: Ignore}},
		{"", Request{Kind: Ignore}},
		{"session created 5", Request{Kind: Ignore}},
		{"session created $5 now", Request{Kind: Ignore}},
		{"remove pane %x", Request{Kind: Ignore}},
		{"session created $99999999999", Request{Kind: Ignore}},
		{"status please", Request{Kind: Ignore}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.line))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "refresh", Refresh.String())
	assert.Equal(t, "attach_to", AttachTo.String())
	assert.Equal(t, "remove_pane", RemovePane.String())
	assert.Equal(t, "status", Status.String())
	assert.Equal(t, "ignore", Ignore.String())
	assert.Equal(t, tmux.PaneID(0), Parse("x").Pane)
}
