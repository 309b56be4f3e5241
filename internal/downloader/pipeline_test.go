package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRunner records its invocation and lets a test act inside the
// working directory in place of the real downloader.
type fakeRunner struct {
	output []byte
	err    error
	files  []string

	dir  string
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.dir = dir
	f.name = name
	f.args = args
	for _, file := range f.files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte("audio"), 0o644); err != nil {
			return nil, err
		}
	}
	return f.output, f.err
}

func newTestPipeline(t *testing.T, runner Runner) (*Pipeline, string) {
	root := t.TempDir()
	p := NewPipeline(Options{
		RootDir: root,
		Command: "spotdl",
		Args:    []string{"download"},
		Timeout: time.Minute,
	}, runner, zap.NewNop())
	return p, root
}

func TestPipeline_Download_Success(t *testing.T) {
	runner := &fakeRunner{
		output: []byte("Downloaded \"Artist - Song\""),
		files:  []string{"Artist - Song.mp3"},
	}
	p, root := newTestPipeline(t, runner)
	req := NewRequest("https://open.spotify.com/track/123")

	track, err := p.Download(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, req.ID, track.DownloadID)
	assert.Equal(t, "Artist - Song.mp3", track.FileName)
	assert.Equal(t, filepath.Join(root, req.ID, "Artist - Song.mp3"), track.Path)

	assert.Equal(t, "spotdl", runner.name)
	assert.Equal(t, []string{"download", "https://open.spotify.com/track/123"}, runner.args)
	assert.Equal(t, filepath.Join(root, req.ID), runner.dir)

	// The caller owns the directory until it calls Cleanup
	assert.DirExists(t, p.WorkDir(req.ID))
	assert.FileExists(t, track.Path)

	require.NoError(t, p.Cleanup(req.ID))
	assert.NoDirExists(t, p.WorkDir(req.ID))
}

func TestPipeline_Download_NotFound(t *testing.T) {
	runner := &fakeRunner{
		output: []byte("Processing query\nNo results found for song: https://open.spotify.com/track/123\n"),
	}
	p, _ := newTestPipeline(t, runner)
	req := NewRequest("https://open.spotify.com/track/123")

	track, err := p.Download(context.Background(), req)

	assert.Nil(t, track)
	assert.ErrorIs(t, err, ErrTrackNotFound)
	assert.NoDirExists(t, p.WorkDir(req.ID))
}

func TestPipeline_Download_NotFoundRemovesPartialFiles(t *testing.T) {
	runner := &fakeRunner{
		output: []byte("No results found for song"),
		files:  []string{"partial.tmp"},
	}
	p, _ := newTestPipeline(t, runner)
	req := NewRequest("https://open.spotify.com/track/123")

	_, err := p.Download(context.Background(), req)

	assert.ErrorIs(t, err, ErrTrackNotFound)
	assert.NoDirExists(t, p.WorkDir(req.ID))
}

func TestPipeline_Download_LaunchFailure(t *testing.T) {
	launchErr := errors.New("exec: \"spotdl\": executable file not found in $PATH")
	runner := &fakeRunner{err: launchErr}
	p, _ := newTestPipeline(t, runner)
	req := NewRequest("https://open.spotify.com/track/123")

	track, err := p.Download(context.Background(), req)

	assert.Nil(t, track)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.ErrorIs(t, err, launchErr)
	assert.False(t, errors.Is(err, ErrTrackNotFound))
	// Nothing was written, so the empty directory is removed
	assert.NoDirExists(t, p.WorkDir(req.ID))
}

func TestPipeline_Download_FailureKeepsNonEmptyDir(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	p, _ := newTestPipeline(t, runner)
	req := NewRequest("https://open.spotify.com/track/123")

	// A subdirectory is not a track, but it makes the directory non-empty
	runner.files = nil
	require.NoError(t, os.MkdirAll(filepath.Join(p.WorkDir(req.ID), "cache"), 0o755))

	track, err := p.Download(context.Background(), req)

	assert.Nil(t, track)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.DirExists(t, p.WorkDir(req.ID))
}

func TestPipeline_Download_ExitErrorWithFile(t *testing.T) {
	runner := &fakeRunner{
		err:   errors.New("exit status 1"),
		files: []string{"song.mp3"},
	}
	p, _ := newTestPipeline(t, runner)
	req := NewRequest("https://open.spotify.com/track/123")

	track, err := p.Download(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "song.mp3", track.FileName)
}

func TestPipeline_Download_EmptyOutput(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeRunner{})
	req := NewRequest("https://open.spotify.com/track/123")

	track, err := p.Download(context.Background(), req)

	assert.Nil(t, track)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.NoDirExists(t, p.WorkDir(req.ID))
}

func TestPipeline_Download_InvalidID(t *testing.T) {
	runner := &fakeRunner{}
	p, root := newTestPipeline(t, runner)

	_, err := p.Download(context.Background(), Request{ID: "../escape", URL: "https://open.spotify.com/track/1"})

	assert.Error(t, err)
	assert.Empty(t, runner.name)
	assert.NoDirExists(t, filepath.Join(root, "..", "escape"))
}

func TestPipeline_Cleanup(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeRunner{})

	t.Run("missing directory is not an error", func(t *testing.T) {
		assert.NoError(t, p.Cleanup(NewRequest("x").ID))
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		assert.Error(t, p.Cleanup("../../etc"))
	})
}

func TestNewRequest_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		req := NewRequest("https://open.spotify.com/track/1")
		assert.NoError(t, validateID(req.ID))
		assert.False(t, seen[req.ID])
		seen[req.ID] = true
	}
}
