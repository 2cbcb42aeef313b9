package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// Process is a handle to a child process owned by the supervisor.
type Process interface {
	Pid() int

	// Alive reports whether the process has not exited yet.
	Alive() bool

	// Kill forcibly terminates the process and everything in its process group.
	// Killing a process that already exited is not an error.
	Kill() error
}

// Launcher starts child processes.
type Launcher interface {
	Start(name string, args ...string) (Process, error)
}

// reapTimeout bounds how long Kill waits for the killed process to be reaped.
const reapTimeout = 2 * time.Second

// ExecLauncher starts processes with os/exec. Each process is placed in its own process group
// and receives SIGKILL when the supervisor dies.
type ExecLauncher struct {
	// Stdout and Stderr receive the output of started processes. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

func (l ExecLauncher) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		// Reap the child so Alive reflects reality and no zombie is left behind.
		_ = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Kill() error {
	// The child leads its own process group, a negative pid targets the whole group. Helpers may
	// outlive the leader, so the group is signalled even when the leader is gone.
	err := unix.Kill(-p.Pid(), unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		err = nil
		if p.Alive() {
			err = p.cmd.Process.Kill()
		}
	}
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process %d: %w", p.Pid(), err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(reapTimeout):
		return fmt.Errorf("process %d did not exit within %s after SIGKILL", p.Pid(), reapTimeout)
	}
}
