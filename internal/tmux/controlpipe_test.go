package tmux

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readUntil polls the stream until want is seen, the stream ends or the
// deadline passes. It returns every line read.
func readUntil(t *testing.T, s Stream, want string, timeout time.Duration) []string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lines []string
	for time.Now().Before(deadline) {
		line, err := s.ReadLine()
		if errors.Is(err, ErrNoData) {
			continue
		}
		if err != nil {
			return lines
		}
		lines = append(lines, line)
		if strings.Contains(line, want) {
			return lines
		}
	}
	return lines
}

func TestControlPipe_LinesThenEnd(t *testing.T) {
	pipe, err := NewControlPipe(context.Background(), 1, "sh", []string{"-c", `printf 'first\r\nsecond\n'`}, false)
	require.NoError(t, err)
	defer pipe.Close()

	var got []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		line, err := pipe.ReadLine()
		if errors.Is(err, ErrNoData) {
			continue
		}
		if errors.Is(err, ErrStreamEnded) {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"first", "second"}, got)

	select {
	case <-pipe.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipe did not finish")
	}
	assert.False(t, pipe.IsAlive())
}

func TestControlPipe_NoDataWhileIdle(t *testing.T) {
	pipe, err := NewControlPipe(context.Background(), 1, "sleep", []string{"5"}, false)
	require.NoError(t, err)
	defer pipe.Close()

	pipe.pollInterval = 20 * time.Millisecond
	_, err = pipe.ReadLine()
	assert.ErrorIs(t, err, ErrNoData)
	assert.True(t, pipe.IsAlive())
}

func TestControlPipe_CloseIsIdempotent(t *testing.T) {
	pipe, err := NewControlPipe(context.Background(), 1, "sleep", []string{"5"}, false)
	require.NoError(t, err)

	require.NoError(t, pipe.Close())
	require.NoError(t, pipe.Close())

	select {
	case <-pipe.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit after Close")
	}
	assert.False(t, pipe.IsAlive())
}

func TestControlPipe_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pipe, err := NewControlPipe(ctx, 1, "sleep", []string{"5"}, false)
	require.NoError(t, err)

	cancel()
	select {
	case <-pipe.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipe survived context cancellation")
	}
}

func TestControlPipe_StartFailure(t *testing.T) {
	_, err := NewControlPipe(context.Background(), 1, "/nonexistent/tmux-binary", nil, false)
	assert.Error(t, err)
}

func TestControlPipe_PTY(t *testing.T) {
	pipe, err := NewControlPipe(context.Background(), 2, "sh", []string{"-c", "echo via-pty"}, true)
	require.NoError(t, err)
	defer pipe.Close()

	lines := readUntil(t, pipe, "via-pty", 5*time.Second)
	require.NotEmpty(t, lines)
	assert.Equal(t, "via-pty", lines[len(lines)-1])
}

func TestControlPipe_AttachOutputEvents(t *testing.T) {
	socket := privateServer(t)
	e := NewExec("tmux", socket, false)

	topo, err := Scan(context.Background(), e)
	require.NoError(t, err)
	require.NotEmpty(t, topo.Sessions)

	stream, err := e.Attach(context.Background(), topo.Sessions[0])
	require.NoError(t, err)
	defer stream.Close()

	// let the control client attach before producing output
	time.Sleep(200 * time.Millisecond)
	target := topo.Sessions[0].String()
	require.NoError(t, exec.Command("tmux", "-S", socket, "send-keys", "-t", target, "echo control-pipe-test", "Enter").Run())

	lines := readUntil(t, stream, "control-pipe-test", 5*time.Second)
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "%output %"), "got %q", lines[len(lines)-1])
}
