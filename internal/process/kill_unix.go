//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// KillProcessGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID).
func KillProcessGroup(pid int) {
	// Best-effort; Wait reports the outcome to the caller.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// setProcessGroup starts the command in its own process group so a timeout
// can take down helpers it spawned (soffice forks oosplash and soffice.bin).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
