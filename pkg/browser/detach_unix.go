//go:build unix

package browser

import (
	"os/exec"
	"syscall"
)

// detach puts the browser in its own process group so it survives the
// terminal session that started it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}
