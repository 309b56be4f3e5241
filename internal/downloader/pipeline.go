package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// notFoundMarker is printed by the downloader when the source has no match
const notFoundMarker = "No results found for"

var (
	// ErrTrackNotFound means the downloader ran but found nothing for the URL
	ErrTrackNotFound = errors.New("no results found for track")
	// ErrNoFile means the downloader failed or produced no output file
	ErrNoFile = errors.New("downloader produced no file")
)

// Options configures the download pipeline
type Options struct {
	RootDir string
	Command string
	// Args precede the URL on the command line
	Args    []string
	Timeout time.Duration
}

// Track is a downloaded file waiting to be consumed. Its working directory
// stays on disk until Cleanup is called with DownloadID.
type Track struct {
	DownloadID string
	Path       string
	FileName   string
}

// Pipeline downloads tracks into isolated per-request directories
type Pipeline struct {
	opts   Options
	runner Runner
	logger *zap.Logger
}

// NewPipeline creates a new download pipeline
func NewPipeline(opts Options, runner Runner, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		opts:   opts,
		runner: runner,
		logger: logger,
	}
}

// WorkDir returns the working directory of a download
func (p *Pipeline) WorkDir(downloadID string) string {
	return filepath.Join(p.opts.RootDir, downloadID)
}

// Download runs the external downloader for req and returns the first file
// it produced. A not-found outcome removes the working directory at once;
// on success the caller owns the directory and must call Cleanup.
func (p *Pipeline) Download(ctx context.Context, req Request) (*Track, error) {
	if err := validateID(req.ID); err != nil {
		return nil, err
	}

	dir := p.WorkDir(req.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	runCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, p.opts.Args...), req.URL)
	out, runErr := p.runner.Run(runCtx, dir, p.opts.Command, args...)

	if strings.Contains(string(out), notFoundMarker) {
		p.logger.Warn("Downloader found no results",
			zap.String("download_id", req.ID),
			zap.String("url", req.URL),
		)
		p.cleanupQuietly(req.ID)
		return nil, ErrTrackNotFound
	}

	path, err := firstFile(dir)
	if err != nil {
		p.logger.Error("Failed to inspect working directory",
			zap.String("download_id", req.ID),
			zap.Error(err),
		)
	}
	if path != "" {
		if runErr != nil {
			p.logger.Warn("Downloader exited with error but produced a file",
				zap.String("download_id", req.ID),
				zap.Error(runErr),
			)
		}
		p.logger.Info("Track downloaded",
			zap.String("download_id", req.ID),
			zap.String("path", path),
		)
		p.logger.Debug("Downloader output", zap.ByteString("output", out))
		return &Track{
			DownloadID: req.ID,
			Path:       path,
			FileName:   filepath.Base(path),
		}, nil
	}

	p.logger.Error("Downloader produced no file",
		zap.String("download_id", req.ID),
		zap.String("url", req.URL),
		zap.ByteString("output", out),
		zap.Error(runErr),
	)
	if empty, _ := isEmptyDir(dir); empty {
		p.cleanupQuietly(req.ID)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFile, ctxErr)
	}
	if runErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFile, runErr)
	}
	return nil, ErrNoFile
}

// Cleanup removes the working directory of a download. Removing a
// directory that no longer exists is not an error.
func (p *Pipeline) Cleanup(downloadID string) error {
	if err := validateID(downloadID); err != nil {
		return err
	}
	if err := os.RemoveAll(p.WorkDir(downloadID)); err != nil {
		return fmt.Errorf("failed to remove working directory %s: %w", downloadID, err)
	}
	p.logger.Info("Removed working directory", zap.String("download_id", downloadID))
	return nil
}

func (p *Pipeline) cleanupQuietly(downloadID string) {
	if err := p.Cleanup(downloadID); err != nil {
		p.logger.Error("Couldn't delete working directory",
			zap.String("download_id", downloadID),
			zap.Error(err),
		)
	}
}

// firstFile returns the first regular file in dir by name
func firstFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
