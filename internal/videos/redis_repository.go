package videos

import (
	"context"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/models"
)

// JobQueue is how the state machine hands work to the worker runtime.
type JobQueue interface {
	Enqueue(ctx context.Context, videoID int64, job *models.EncodeJob) error
}

// JobConsumer is the worker side of the queue. Delivery is at-least-once, the lease keeps
// a redelivered job from running twice at the same time.
type JobConsumer interface {
	// Dequeue blocks up to timeout and returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*models.EncodeJob, error)
	// Requeue puts a dequeued job back at the tail of the queue unchanged.
	Requeue(ctx context.Context, job *models.EncodeJob) error
	AcquireLease(ctx context.Context, videoID int64, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, videoID int64, ttl time.Duration) error
	ReleaseLease(ctx context.Context, videoID int64) error
	Length(ctx context.Context) (int64, error)
}

// JobRepository is the Redis-backed implementation of both sides.
type JobRepository interface {
	JobQueue
	JobConsumer
}
