package models

import "time"

type PlaybackFormat string

const (
	FormatMP4 PlaybackFormat = "mp4"
	FormatHLS PlaybackFormat = "hls"
)

type QualityInfo struct {
	URL        string `json:"url"`
	Resolution string `json:"resolution"`
	Bitrate    int    `json:"bitrate"`
	Filesize   int64  `json:"filesize"`
}

// PlaybackInfo lists signed URLs for every playable form of a ready video.
type PlaybackInfo struct {
	VideoID   string                 `json:"video_id"`
	Duration  int                    `json:"duration"`
	Thumbnail string                 `json:"thumbnail,omitempty"`
	StreamURL string                 `json:"stream_url"`
	HLSURL    string                 `json:"hls_url,omitempty"`
	Qualities map[string]QualityInfo `json:"qualities"`
	ExpiresAt time.Time              `json:"expires_at"`
	Status    ProcessingState        `json:"status"`
}

func (p *PlaybackInfo) GetPlaybackURL(format PlaybackFormat, quality string) string {
	switch format {
	case FormatHLS:
		return p.HLSURL
	case FormatMP4:
		if q, ok := p.Qualities[quality]; ok {
			return q.URL
		}
		return p.StreamURL
	}
	return ""
}
