package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExitStatus is the outcome of a finished link process.
type ExitStatus struct {
	Code int
	Err  error
}

// Process is a running link child. The supervisor owns the handle
// exclusively and is the only caller of these methods.
type Process interface {
	// Done delivers the exit status once, when the process finishes.
	Done() <-chan ExitStatus
	Signal(sig os.Signal) error
	Kill() error
	Pid() int
}

// Spawner starts link processes. The exec-backed one is used in
// production; tests substitute a fake.
type Spawner interface {
	Spawn(args []string) (Process, error)
}

type execSpawner struct{}

// NewExecSpawner returns a Spawner backed by os/exec. The child
// inherits stdout/stderr so relay output stays visible on the console.
func NewExecSpawner() Spawner {
	return execSpawner{}
}

func (execSpawner) Spawn(args []string) (Process, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty link command")
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	p := &execProcess{cmd: cmd, done: make(chan ExitStatus, 1)}
	go func() {
		err := cmd.Wait()
		p.done <- exitStatus(err)
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan ExitStatus
}

func (p *execProcess) Done() <-chan ExitStatus { return p.done }

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Signal(syscall.SIGKILL)
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ExitStatus{Code: ee.ExitCode(), Err: err}
	}
	return ExitStatus{Code: -1, Err: err}
}
