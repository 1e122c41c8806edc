package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidMedia means the file was readable but is not a media container ffprobe understands.
var ErrInvalidMedia = errors.New("not a valid media file")

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	DisplayAspect string `json:"display_aspect_ratio,omitempty"`
	Duration      string `json:"duration,omitempty"`
	BitRate       string `json:"bit_rate,omitempty"`
	Tags          struct {
		Rotate string `json:"rotate,omitempty"`
	} `json:"tags,omitempty"`
}

// SourceInfo is what the pipeline needs to know about an upload.
type SourceInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	VideoCodec      string
	AudioCodec      string
	FormatName      string
	BitrateKbps     int
	Moov            MoovPosition
}

// WholeSeconds rounds down, the unit stored on the video.
func (s *SourceInfo) WholeSeconds() int {
	return int(math.Floor(s.DurationSeconds))
}

// CanStreamCopy is true when a plain remux yields a browser-playable H.264/AAC MP4.
func (s *SourceInfo) CanStreamCopy() bool {
	if s.VideoCodec != "h264" {
		return false
	}
	if s.AudioCodec != "" && s.AudioCodec != "aac" {
		return false
	}
	return strings.Contains(s.FormatName, "mp4") || strings.Contains(s.FormatName, "mov")
}

type Prober struct {
	runner      Runner
	ffprobePath string
	timeout     time.Duration
}

func NewProber(runner Runner, ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		runner:      runner,
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	if timeout > 0 {
		p.timeout = timeout
	}
	return p
}

// Probe inspects a local file.
func (p *Prober) Probe(ctx context.Context, path string) (*SourceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("%w: decode ffprobe output: %v", ErrInvalidMedia, err)
	}
	info, err := sourceInfo(&result)
	if err != nil {
		return nil, err
	}

	moov, err := DetectMoovPosition(path)
	if err != nil {
		moov = MoovUnknown
	}
	info.Moov = moov
	return info, nil
}

func sourceInfo(r *ProbeResult) (*SourceInfo, error) {
	info := &SourceInfo{FormatName: r.Format.FormatName}
	var video *ProbeStream
	for i := range r.Streams {
		s := &r.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if video == nil {
		return nil, fmt.Errorf("%w: no video stream", ErrInvalidMedia)
	}
	info.VideoCodec = video.CodecName
	info.Width, info.Height = video.Width, video.Height
	if rot := video.Tags.Rotate; rot == "90" || rot == "270" || rot == "-90" {
		info.Width, info.Height = info.Height, info.Width
	}

	info.DurationSeconds = parseFloat(r.Format.Duration)
	if info.DurationSeconds == 0 {
		info.DurationSeconds = parseFloat(video.Duration)
	}
	if br := parseFloat(r.Format.BitRate); br > 0 {
		info.BitrateKbps = int(br / 1000)
	}
	return info, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
