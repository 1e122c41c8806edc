package models

import (
	"time"

	"github.com/google/uuid"
)

// EncodeJob is the unit of work placed on the job queue. The video row is the source of
// truth; the job only names which video to run.
type EncodeJob struct {
	VideoID    int64     `json:"video_id" validate:"required,gt=0"`
	UUID       uuid.UUID `json:"uuid" validate:"required"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempt    int       `json:"attempt"`

	// LeaseWaitSince is set the first time a worker finds the video leased and puts the
	// job back on the queue.
	LeaseWaitSince time.Time `json:"lease_wait_since,omitempty"`
}

// StuckKind says why a video was considered stuck.
type StuckKind string

const (
	StuckInQueue      StuckKind = "queue"
	StuckInProcessing StuckKind = "processing"
)

type StuckVideo struct {
	VideoID         int64           `json:"video_id"`
	UUID            uuid.UUID       `json:"uuid"`
	Kind            StuckKind       `json:"kind"`
	State           ProcessingState `json:"state"`
	QueuedAt        *time.Time      `json:"queued_at,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	LastHeartbeatAt *time.Time      `json:"last_heartbeat_at,omitempty"`
	Waiting         time.Duration   `json:"waiting_ns"`
}

// StuckReport is the read-only result of a detector sweep.
type StuckReport struct {
	QueuedCount     int           `json:"queued_count"`
	ProcessingCount int           `json:"processing_count"`
	Stuck           []*StuckVideo `json:"stuck"`
	CheckedAt       time.Time     `json:"checked_at"`
}

type StuckFixResult struct {
	StuckInQueueCount      int       `json:"stuck_in_queue_count"`
	StuckInProcessingCount int       `json:"stuck_in_processing_count"`
	FixedIDs               []int64   `json:"fixed_ids"`
	CheckedAt              time.Time `json:"checked_at"`
}

// QueueStats backs the /stats endpoint.
type QueueStats struct {
	ByState     map[ProcessingState]int `json:"by_state"`
	QueueLength int64                   `json:"queue_length"`
	Stuck       int                     `json:"stuck"`
}
