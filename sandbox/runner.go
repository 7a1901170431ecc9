package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// CommandSpec describes one external process invocation. When Env is
// non-nil the process receives exactly that environment and inherits
// nothing from the host.
type CommandSpec struct {
	Args []string
	Dir  string
	Env  []string
}

// CommandOutput carries the collected output of a finished process.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, spec CommandSpec) (CommandOutput, error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// killGracePeriod bounds how long a cancelled child process may linger
// before its handle is reaped.
const killGracePeriod = 3 * time.Second

// RunCommand executes the given command specification
func (RealCommandRunner) RunCommand(ctx context.Context, spec CommandSpec) (CommandOutput, error) {
	if len(spec.Args) < 1 {
		return CommandOutput{}, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, spec.Args[0], spec.Args[1:]...) //nolint:gosec // Arguments are engine-constructed, never raw caller input
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.WaitDelay = killGracePeriod

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return CommandOutput{}, err
		}
	}

	return CommandOutput{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: exitCode,
	}, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// FilePermission is applied to engine-generated workspace files.
const FilePermission = 0600
