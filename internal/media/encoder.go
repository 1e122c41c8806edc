package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

var timeRegex = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// RFC 6381 codec strings of what RenditionArgs produces: x264 High profile and AAC-LC.
const (
	renditionVideoCodec = "avc1.640028"
	renditionAudioCodec = "mp4a.40.2"
)

// ProgressFunc receives the fraction of the source encoded so far, in [0,1].
type ProgressFunc func(fraction float64)

// Target describes one rendition encode.
type Target struct {
	Quality models.Quality
	Width   int
	Height  int
}

// NewTarget sizes a quality for a given source, keeping its aspect ratio.
func NewTarget(q models.Quality, src *SourceInfo) Target {
	return Target{
		Quality: q,
		Width:   q.Width(src.Width, src.Height),
		Height:  q.Profile().Height,
	}
}

type Encoder struct {
	runner     Runner
	ffmpegPath string
}

func NewEncoder(runner Runner, ffmpegPath string) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Encoder{runner: runner, ffmpegPath: ffmpegPath}
}

// RenditionArgs builds the x264 fast-start MP4 command line for a target.
func RenditionArgs(input, output string, t Target) []string {
	p := t.Quality.Profile()
	return []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("scale=%d:%d", t.Width, t.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "24",
		"-maxrate", fmt.Sprintf("%dk", p.MaxrateKbps),
		"-bufsize", fmt.Sprintf("%dk", p.BufsizeKbps),
		"-g", "48",
		"-keyint_min", "48",
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", p.AudioKbps),
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	}
}

// EncodeRendition writes one rendition and reports progress parsed from ffmpeg's stderr.
// The output file is removed when the encode fails so a partial file is never picked up.
func (e *Encoder) EncodeRendition(ctx context.Context, input, output string, t Target, durationSeconds float64, onProgress ProgressFunc) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	err := e.runner.Stream(ctx, progressParser(durationSeconds, onProgress), e.ffmpegPath, RenditionArgs(input, output, t)...)
	if err != nil {
		_ = os.Remove(output)
		return 0, fmt.Errorf("encode %s: %w", t.Quality, err)
	}
	return outputSize(output)
}

// Remux copies the streams into a fast-start MP4 without re-encoding.
func (e *Encoder) Remux(ctx context.Context, input, output string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	_, err := e.runner.Run(ctx, e.ffmpegPath,
		"-y",
		"-i", input,
		"-c", "copy",
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	)
	if err != nil {
		_ = os.Remove(output)
		return 0, fmt.Errorf("remux: %w", err)
	}
	return outputSize(output)
}

// HLSVariant is a finished rendition fed to the HLS packager.
type HLSVariant struct {
	Quality     models.Quality
	Input       string
	Width       int
	Height      int
	BitrateKbps int
	Audio       bool
}

// PackageHLS segments each variant without re-encoding and writes master.m3u8 into outDir.
// It returns the master playlist path relative to outDir.
func (e *Encoder) PackageHLS(ctx context.Context, variants []HLSVariant, outDir string) (string, error) {
	if len(variants) == 0 {
		return "", fmt.Errorf("hls: no variants")
	}
	master := &playlist.Multivariant{Version: 3}
	for _, v := range variants {
		dir := filepath.Join(outDir, v.Quality.String())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("hls: create dir: %w", err)
		}
		_, err := e.runner.Run(ctx, e.ffmpegPath,
			"-y",
			"-i", v.Input,
			"-c", "copy",
			"-f", "hls",
			"-hls_time", "6",
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", filepath.Join(dir, "seg_%03d.ts"),
			filepath.Join(dir, "index.m3u8"),
		)
		if err != nil {
			return "", fmt.Errorf("hls %s: %w", v.Quality, err)
		}
		codecs := []string{renditionVideoCodec}
		if v.Audio {
			codecs = append(codecs, renditionAudioCodec)
		}
		master.Variants = append(master.Variants, &playlist.MultivariantVariant{
			Bandwidth:  v.BitrateKbps * 1000,
			Codecs:     codecs,
			Resolution: fmt.Sprintf("%dx%d", v.Width, v.Height),
			URI:        v.Quality.String() + "/index.m3u8",
		})
	}
	raw, err := master.Marshal()
	if err != nil {
		return "", fmt.Errorf("hls: marshal master: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "master.m3u8"), raw, 0o644); err != nil {
		return "", fmt.Errorf("hls: write master: %w", err)
	}
	return "master.m3u8", nil
}

func progressParser(durationSeconds float64, onProgress ProgressFunc) func(string) {
	return func(line string) {
		if onProgress == nil || durationSeconds <= 0 {
			return
		}
		sec, ok := ParseProgressTime(line)
		if !ok {
			return
		}
		frac := sec / durationSeconds
		if frac > 1 {
			frac = 1
		}
		onProgress(frac)
	}
}

// ParseProgressTime extracts the time=HH:MM:SS.ss position of an ffmpeg status line.
func ParseProgressTime(line string) (float64, bool) {
	m := timeRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	return float64(h*3600+min*60) + sec, true
}

func outputSize(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	if st.Size() == 0 {
		return 0, fmt.Errorf("output %s is empty", filepath.Base(path))
	}
	return st.Size(), nil
}
