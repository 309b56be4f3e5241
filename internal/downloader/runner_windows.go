//go:build windows

package downloader

import "os/exec"

// configureProcess keeps the exec default, which kills the process on cancel
func configureProcess(cmd *exec.Cmd) {}
