package videos

import (
	"context"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/media"
)

// Prober, Encoder and Thumbnailer are the ffmpeg-backed tools Run drives. The media package
// provides the real implementations.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.SourceInfo, error)
}

type Encoder interface {
	EncodeRendition(ctx context.Context, input, output string, t media.Target, durationSeconds float64, onProgress media.ProgressFunc) (int64, error)
	Remux(ctx context.Context, input, output string) (int64, error)
	PackageHLS(ctx context.Context, variants []media.HLSVariant, outDir string) (string, error)
}

type Thumbnailer interface {
	Extract(ctx context.Context, input, output string, at int) (int64, error)
}

// MediaTools groups the three so constructors stay short.
type MediaTools struct {
	Prober      Prober
	Encoder     Encoder
	Thumbnailer Thumbnailer
}

// NewMediaTools wires the ffmpeg and ffprobe binaries named in cfg.
func NewMediaTools(runner media.Runner, cfg config.ProcessingConfig) MediaTools {
	return MediaTools{
		Prober:      media.NewProber(runner, cfg.FFprobePath).WithTimeout(cfg.ProbeTimeout),
		Encoder:     media.NewEncoder(runner, cfg.FFmpegPath),
		Thumbnailer: media.NewThumbnailer(runner, cfg.FFmpegPath),
	}
}
