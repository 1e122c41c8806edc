package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const defaultThumbnailSecond = 10

type Thumbnailer struct {
	runner     Runner
	ffmpegPath string
}

func NewThumbnailer(runner Runner, ffmpegPath string) *Thumbnailer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Thumbnailer{runner: runner, ffmpegPath: ffmpegPath}
}

// ThumbnailSecond picks the frame: a quarter into the video, 10s when the duration is
// unknown, pulled back to the midpoint when that would land past the end.
func ThumbnailSecond(durationSeconds int) int {
	if durationSeconds <= 0 {
		return defaultThumbnailSecond
	}
	pos := durationSeconds / 4
	if pos < 1 {
		pos = 1
	}
	if pos >= durationSeconds {
		pos = durationSeconds / 2
	}
	return pos
}

// Extract writes a single 640px wide JPEG frame taken at second at.
func (t *Thumbnailer) Extract(ctx context.Context, input, output string, at int) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return 0, fmt.Errorf("create thumbnail dir: %w", err)
	}
	_, err := t.runner.Run(ctx, t.ffmpegPath,
		"-y",
		"-i", input,
		"-ss", strconv.Itoa(at),
		"-vframes", "1",
		"-vf", "scale=640:-2",
		"-q:v", "2",
		output,
	)
	if err != nil {
		_ = os.Remove(output)
		return 0, fmt.Errorf("thumbnail: %w", err)
	}
	return outputSize(output)
}
