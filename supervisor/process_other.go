//go:build !unix

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

func processGroup() *syscall.SysProcAttr {
	return nil
}

func terminate(cmd *exec.Cmd) {
	_ = cmd.Process.Signal(os.Interrupt)
}

func kill(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}
