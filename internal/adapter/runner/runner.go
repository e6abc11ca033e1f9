package runner

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/semmidev/blockward/internal/domain"
)

// ExecRunner launches commands in their own process group so that a
// later termination signal reaches every member of a shell pipeline,
// not just its leader.
type ExecRunner struct{}

func NewExec() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) StartGroup(argv []string) (domain.Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// A single pipe carries stdout and stderr interleaved; dd reports
	// progress on stderr.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	// The child holds its own copy of the write end; closing ours makes
	// the read end see EOF once every group member has exited.
	pw.Close()

	p := &GroupProcess{
		cmd:    cmd,
		output: pr,
		done:   make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

// GroupProcess owns the lifecycle of one launched process group. The
// internal reaper goroutine performs the one and only wait(2).
type GroupProcess struct {
	cmd    *exec.Cmd
	output *os.File
	done   chan struct{}

	once      sync.Once
	closeOnce sync.Once
	waitErr   error
}

func (p *GroupProcess) reap() {
	p.once.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
}

func (p *GroupProcess) Output() io.Reader {
	return p.output
}

// Wait returns once the group leader has been reaped. The read end of
// the output pipe is released here, not in the reaper, so a consumer
// that drains Output to EOF before calling Wait never races the close.
func (p *GroupProcess) Wait() error {
	<-p.done
	p.closeOnce.Do(func() { p.output.Close() })
	return p.waitErr
}

func (p *GroupProcess) Done() <-chan struct{} {
	return p.done
}

func (p *GroupProcess) ExitCode() int {
	<-p.done
	return p.cmd.ProcessState.ExitCode()
}

func (p *GroupProcess) Terminate() error {
	return p.signalGroup(unix.SIGTERM)
}

func (p *GroupProcess) Kill() error {
	return p.signalGroup(unix.SIGKILL)
}

func (p *GroupProcess) signalGroup(sig unix.Signal) error {
	pgid, err := unix.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		return fmt.Errorf("failed to resolve process group: %w", err)
	}
	if err := unix.Kill(-pgid, sig); err != nil {
		return fmt.Errorf("failed to signal process group %d: %w", pgid, err)
	}
	return nil
}
