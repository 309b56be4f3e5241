//go:build !windows

package downloader

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CombinedOutputInDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewExecRunner(time.Second)

	out, err := r.Run(context.Background(), dir, "sh", "-c", `echo out; echo err 1>&2; touch track.mp3`)

	require.NoError(t, err)
	assert.Contains(t, string(out), "out")
	assert.Contains(t, string(out), "err")
	assert.FileExists(t, filepath.Join(dir, "track.mp3"))
}

func TestExecRunner_ArgumentsAreNotInterpreted(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewExecRunner(time.Second)

	out, err := r.Run(context.Background(), dir, "echo", "https://x/track;touch pwned")

	require.NoError(t, err)
	assert.Contains(t, string(out), "touch pwned")
	_, statErr := os.Stat(filepath.Join(dir, "pwned"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecRunner_CancelKillsProcessGroup(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewExecRunner(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// The child sleep inherits stdout, so only a group kill lets Run return early
	_, err := r.Run(ctx, dir, "sh", "-c", "sleep 30 & sleep 30")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(time.Second)

	out, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo failing; exit 3")

	assert.Error(t, err)
	assert.Contains(t, string(out), "failing")
}
