package tmux

import (
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// Control clients only print events; the terminal size just has to be
// large enough that tmux does not shrink the attached session.
const (
	ptyRows = 50
	ptyCols = 200
)

// startPTY starts cmd with a pseudo-terminal as its controlling terminal
// and returns the master side.
func startPTY(cmd *exec.Cmd) (*os.File, error) {
	return pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})
}
