package tmux

import (
	"os/exec"
	"path/filepath"
	"testing"
)

func skipIfNoTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
}

// privateServer starts a tmux server on a socket inside t.TempDir so tests
// never touch the user's sessions. Returns the socket path.
func privateServer(t *testing.T) string {
	t.Helper()
	skipIfNoTmux(t)

	socket := filepath.Join(t.TempDir(), "tmux.sock")
	if err := exec.Command("tmux", "-S", socket, "new-session", "-d", "-x", "80", "-y", "24").Run(); err != nil {
		t.Skipf("cannot start private tmux server: %v", err)
	}
	t.Cleanup(func() {
		_ = exec.Command("tmux", "-S", socket, "kill-server").Run()
	})
	return socket
}
