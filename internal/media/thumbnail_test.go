package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/grabber/internal/testutil"
)

type recordedRun struct {
	name string
	args []string
}

func writingRunner(calls *[]recordedRun) CommandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedRun{name: name, args: args})
		out := args[len(args)-1]
		return nil, os.WriteFile(out, []byte("jpeg"), 0o644)
	}
}

func TestThumbnailer_GeneratesFrameAtMidpoint(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "clip.mp4")

	var calls []recordedRun
	th := NewThumbnailer("/usr/bin/ffmpeg", testutil.TestLogger()).WithRunner(writingRunner(&calls))

	path, generated := th.Resolve(context.Background(), filepath.Join(dir, "thumbnail.jpg"), media,
		Delivery{Shape: Video, Metadata: Metadata{Width: 1280, Height: 720, Duration: 31 * time.Second}})

	assert.True(t, generated)
	assert.Equal(t, filepath.Join(dir, "video_thumb_clip.mp4.jpg"), path)
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", calls[0].name)
	assert.Equal(t, []string{"-i", media, "-ss", "15", "-vframes", "1", "-s", "320x180", "-y", path}, calls[0].args)
}

func TestThumbnailer_CustomWins(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "thumbnail.jpg")
	require.NoError(t, os.WriteFile(custom, []byte("jpeg"), 0o644))

	var calls []recordedRun
	th := NewThumbnailer("", testutil.TestLogger()).WithRunner(writingRunner(&calls))

	path, generated := th.Resolve(context.Background(), custom, filepath.Join(dir, "clip.mp4"), Delivery{Shape: VideoNote})
	assert.Equal(t, custom, path)
	assert.False(t, generated)
	assert.Empty(t, calls)

	path, generated = th.Resolve(context.Background(), custom, filepath.Join(dir, "song.mp3"), Delivery{Shape: Audio})
	assert.Equal(t, custom, path)
	assert.False(t, generated)
}

func TestThumbnailer_NothingForAudioAndDocuments(t *testing.T) {
	dir := t.TempDir()
	var calls []recordedRun
	th := NewThumbnailer("", testutil.TestLogger()).WithRunner(writingRunner(&calls))

	for _, shape := range []Shape{Audio, Document} {
		path, generated := th.Resolve(context.Background(), filepath.Join(dir, "thumbnail.jpg"), filepath.Join(dir, "x.bin"), Delivery{Shape: shape})
		assert.Empty(t, path)
		assert.False(t, generated)
	}
	assert.Empty(t, calls)
}

func TestThumbnailer_FailureMeansNoThumbnail(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "clip.mp4")

	th := NewThumbnailer("", testutil.TestLogger()).WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
		return []byte("clip.mp4: Invalid data found when processing input\n"), errors.New("exit status 1")
	})

	path, generated := th.Resolve(context.Background(), "", media, Delivery{Shape: Video})
	assert.Empty(t, path)
	assert.False(t, generated)
	assert.NoFileExists(t, GeneratedPath(media))
}
