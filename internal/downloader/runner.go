package downloader

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Runner starts an external command and returns its combined output
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands directly, without a shell, so arguments are
// never re-interpreted. When ctx ends the whole process tree is killed.
type ExecRunner struct {
	// WaitDelay bounds how long output pipes are drained after the kill
	WaitDelay time.Duration
}

// NewExecRunner creates a runner with the given post-kill drain window
func NewExecRunner(waitDelay time.Duration) *ExecRunner {
	return &ExecRunner{WaitDelay: waitDelay}
}

// Run executes name with args inside dir
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = r.WaitDelay
	configureProcess(cmd)

	err := cmd.Run()
	return out.Bytes(), err
}
