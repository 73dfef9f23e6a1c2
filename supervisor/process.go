package supervisor

import (
	"fmt"
	"io"
	"os/exec"
	"time"
)

// process is one launch of the supervised command.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func launch(command []string, dir string, stdout, stderr io.Writer) (*process, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = processGroup()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command[0], err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *process) pid() int {
	return p.cmd.Process.Pid
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// stop sends the terminate signal and waits up to timeout before killing.
// It reports whether the kill was needed.
func (p *process) stop(timeout time.Duration) (killed bool) {
	if p.exited() {
		return false
	}

	terminate(p.cmd)
	select {
	case <-p.done:
		return false
	case <-time.After(timeout):
	}

	kill(p.cmd)
	<-p.done
	return true
}
