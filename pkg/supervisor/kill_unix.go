//go:build !windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

// killGroup kills the child's whole process group. pty.Start makes the
// child a session leader, so its pid is also its group id.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return cmd.Process.Kill()
}
