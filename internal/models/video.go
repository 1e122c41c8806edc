package models

import (
	"time"

	"github.com/google/uuid"
)

type ProcessingState string

const (
	StatePending    ProcessingState = "pending"
	StateQueued     ProcessingState = "queued"
	StateProcessing ProcessingState = "processing"
	StateReady      ProcessingState = "ready"
	StateFailed     ProcessingState = "failed"
)

// Enqueueable reports whether a video in this state may be put back on the queue.
// ready -> queued is a rebuild.
func (s ProcessingState) Enqueueable() bool {
	return s == StatePending || s == StateFailed || s == StateReady
}

// InFlight is true for the states StuckJobDetector watches.
func (s ProcessingState) InFlight() bool {
	return s == StateQueued || s == StateProcessing
}

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

type Video struct {
	ID                 int64           `json:"id" db:"id"`
	UUID               uuid.UUID       `json:"uuid" db:"uuid"`
	OriginalPath       string          `json:"original_path" db:"original_path"`
	StreamPath         *string         `json:"stream_path" db:"stream_path"`
	Renditions         Renditions      `json:"renditions" db:"renditions"`
	ThumbnailPath      *string         `json:"thumbnail_path" db:"thumbnail_path"`
	HLSMasterPath      *string         `json:"hls_master_path" db:"hls_master_path"`
	DurationSeconds    int             `json:"duration_seconds" db:"duration_seconds"`
	Visibility         Visibility      `json:"visibility" db:"visibility"`
	ProcessingState    ProcessingState `json:"processing_state" db:"processing_state"`
	ProcessingProgress int             `json:"processing_progress" db:"processing_progress"`
	ProcessingError    *string         `json:"processing_error" db:"processing_error"`
	QueuedAt           *time.Time      `json:"queued_at" db:"queued_at"`
	StartedAt          *time.Time      `json:"started_at" db:"started_at"`
	LastHeartbeatAt    *time.Time      `json:"last_heartbeat_at" db:"last_heartbeat_at"`
	FinishedAt         *time.Time      `json:"finished_at" db:"finished_at"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// StreamReady is the one flag callers check before offering playback.
func (v *Video) StreamReady() bool {
	return v.ProcessingState == StateReady && v.StreamPath != nil && *v.StreamPath != ""
}

func (v *Video) HLSReady() bool {
	return v.HLSMasterPath != nil && *v.HLSMasterPath != ""
}

func (v *Video) ThumbnailReady() bool {
	return v.ThumbnailPath != nil && *v.ThumbnailPath != ""
}

func (v *Video) Status() *VideoStatus {
	st := &VideoStatus{
		UUID:               v.UUID,
		ProcessingState:    v.ProcessingState,
		ProcessingProgress: v.ProcessingProgress,
		StreamReady:        v.StreamReady(),
		HLSReady:           v.HLSReady(),
		ThumbnailReady:     v.ThumbnailReady(),
		DurationSeconds:    v.DurationSeconds,
		Qualities:          v.Renditions.Labels(),
		QueuedAt:           v.QueuedAt,
		StartedAt:          v.StartedAt,
		LastHeartbeatAt:    v.LastHeartbeatAt,
		FinishedAt:         v.FinishedAt,
	}
	if v.ProcessingError != nil {
		st.ProcessingError = *v.ProcessingError
	}
	return st
}

// VideoStatus is the read-only view handed to UI and collaborators.
type VideoStatus struct {
	UUID               uuid.UUID       `json:"uuid"`
	ProcessingState    ProcessingState `json:"processing_state"`
	ProcessingProgress int             `json:"processing_progress"`
	ProcessingError    string          `json:"processing_error,omitempty"`
	StreamReady        bool            `json:"stream_ready"`
	HLSReady           bool            `json:"hls_ready"`
	ThumbnailReady     bool            `json:"thumbnail_ready"`
	DurationSeconds    int             `json:"duration_seconds"`
	Qualities          []string        `json:"qualities"`
	QueuedAt           *time.Time      `json:"queued_at,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	LastHeartbeatAt    *time.Time      `json:"last_heartbeat_at,omitempty"`
	FinishedAt         *time.Time      `json:"finished_at,omitempty"`
}

type RegisterVideoInput struct {
	OriginalPath string     `json:"original_path" validate:"required,lte=1024"`
	Visibility   Visibility `json:"visibility" validate:"omitempty,oneof=public unlisted private"`
}

// UploadURLInput asks for a presigned PUT URL for a new original.
type UploadURLInput struct {
	Name     string `json:"name" validate:"required,lte=255"`
	MimeType string `json:"mime_type" validate:"required,lte=128"`
	Size     int64  `json:"size" validate:"required,gt=0"`
}

type UploadURL struct {
	URL          string    `json:"url"`
	OriginalPath string    `json:"original_path"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type EnqueueInput struct {
	Reason string `json:"reason" validate:"omitempty,lte=64"`
}

type EnqueueResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VideoStoragePrefix is the directory every derived file of a video lives under.
func VideoStoragePrefix(id uuid.UUID) string {
	return "videos/" + id.String()
}

func StreamObjectPath(id uuid.UUID) string {
	return VideoStoragePrefix(id) + "/stream.mp4"
}

func ThumbnailObjectPath(id uuid.UUID) string {
	return VideoStoragePrefix(id) + "/thumb.jpg"
}

func RenditionObjectPath(id uuid.UUID, q Quality) string {
	return VideoStoragePrefix(id) + "/renditions/" + q.String() + ".mp4"
}

func HLSPrefix(id uuid.UUID) string {
	return VideoStoragePrefix(id) + "/hls"
}
