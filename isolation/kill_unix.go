//go:build unix

package isolation

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	modSysProcAttr(cmd, func(sa *syscall.SysProcAttr) {
		sa.Setpgid = true
		sa.Pgid = 0
	})
}

// killProcessGroup sends SIGKILL to the child's whole process group, so
// that anything the child spawned goes with it.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid

	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}

	if kerr := cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
		return errors.Join(fmt.Errorf("signal group %d: %w", pid, err), kerr)
	}

	return nil
}

func modSysProcAttr(cmd *exec.Cmd, f func(sa *syscall.SysProcAttr)) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}

	f(cmd.SysProcAttr)
}
