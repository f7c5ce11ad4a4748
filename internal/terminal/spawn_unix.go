//go:build !windows

package terminal

import (
	"os/exec"
	"syscall"
)

// configureSession makes the shell a session leader with the PTY slave
// as its controlling terminal, so the whole job tree receives SIGHUP
// when the master closes.
func configureSession(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true, // new session
		Setctty: true, // controlling terminal on stdin (the slave)
	}
}
