package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// Process is a running backend instance
type Process interface {
	// Pid returns the operating system process id
	Pid() int
	// Wait blocks until the process exits
	Wait() error
	// Kill terminates the process
	Kill() error
}

// Starter spawns backend processes
type Starter interface {
	Start(path string) (Process, error)
}

// ExecStarter spawns the backend as a detached child with inherited stdio
type ExecStarter struct {
	logger *zap.Logger
}

// NewExecStarter creates the os/exec based starter
func NewExecStarter(logger *zap.Logger) *ExecStarter {
	return &ExecStarter{logger: logger}
}

// Start launches path without arguments
func (s *ExecStarter) Start(path string) (Process, error) {
	cmd := exec.Command(path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = detachedAttr()

	s.logger.Debug("Spawning backend", zap.String("path", path))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}
