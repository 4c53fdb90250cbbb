package gateway

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	// CombinedOutput runs name with args and returns stdout with stderr
	// merged into it.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
