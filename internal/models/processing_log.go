package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type JobType string

const (
	JobTypePrepareStream   JobType = "prepare_stream"
	JobTypeBuildRenditions JobType = "build_renditions"
	JobTypeHLS             JobType = "hls"
	JobTypeStuckDetector   JobType = "stuck_detector"
	JobTypeEnqueue         JobType = "enqueue"
)

type LogStatus string

const (
	LogStatusInfo     LogStatus = "info"
	LogStatusWarning  LogStatus = "warning"
	LogStatusError    LogStatus = "error"
	LogStatusProgress LogStatus = "progress"
)

// LogMetadata is the fixed schema of the metadata column. Unknown keys are rejected on read.
type LogMetadata struct {
	Reason          string   `json:"reason,omitempty"`
	Quality         string   `json:"quality,omitempty"`
	Error           string   `json:"error,omitempty"`
	Stage           string   `json:"stage,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	SourceWidth     int      `json:"source_width,omitempty"`
	SourceHeight    int      `json:"source_height,omitempty"`
	VideoCodec      string   `json:"video_codec,omitempty"`
	Moov            string   `json:"moov,omitempty"`
	Filesize        int64    `json:"filesize,omitempty"`
	ElapsedMillis   int64    `json:"elapsed_ms,omitempty"`
	Renditions      []string `json:"renditions,omitempty"`
	TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
}

func (m LogMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *LogMetadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = LogMetadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("log metadata: unsupported column type %T", src)
	}
	var parsed LogMetadata
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return fmt.Errorf("log metadata: %w", err)
	}
	*m = parsed
	return nil
}

type ProcessingLogEntry struct {
	ID        int64       `json:"id" db:"id"`
	VideoID   int64       `json:"video_id" db:"video_id"`
	JobType   JobType     `json:"job_type" db:"job_type"`
	Status    LogStatus   `json:"status" db:"status"`
	Progress  *int        `json:"progress,omitempty" db:"progress"`
	Message   string      `json:"message" db:"message"`
	Metadata  LogMetadata `json:"metadata" db:"metadata"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type ProcessingLogList struct {
	Entries    []*ProcessingLogEntry `json:"entries"`
	TotalCount int                   `json:"total_count"`
	TotalPages int                   `json:"total_pages"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	HasMore    bool                  `json:"has_more"`
}
