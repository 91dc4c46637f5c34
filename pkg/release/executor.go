package release

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// CommandExecutor runs external commands. It's the seam that keeps git out of the tests.
type CommandExecutor interface {
	// Output runs the command in dir and returns its stdout.
	Output(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecExecutor is the default CommandExecutor backed by os/exec.
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// Output implements CommandExecutor.Output
func (e *ExecExecutor) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.String(), eris.Wrapf(ErrCommandFailed, "%s %s: %s", name, strings.Join(args, " "), msg)
	}

	return stdout.String(), nil
}
