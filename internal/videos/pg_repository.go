package videos

import (
	"context"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/google/uuid"
)

// ReadyUpdate carries everything finalize writes in one statement.
type ReadyUpdate struct {
	StreamPath    string
	Renditions    models.Renditions
	HLSMasterPath *string
	FinishedAt    time.Time
}

// Repository persists video rows. Transitions are compare-and-set on processing_state and
// report false when the row was not in the expected state.
type Repository interface {
	Create(ctx context.Context, video *models.Video) (*models.Video, error)
	GetByID(ctx context.Context, id int64) (*models.Video, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error)

	MarkQueued(ctx context.Context, id int64, queuedAt time.Time) (bool, error)
	StartProcessing(ctx context.Context, id int64, startedAt time.Time) (bool, error)
	Heartbeat(ctx context.Context, id int64, at time.Time) (bool, error)
	UpdateProgress(ctx context.Context, id int64, progress int) error
	SaveDuration(ctx context.Context, id int64, durationSeconds int) error
	SaveThumbnail(ctx context.Context, id int64, path string) error
	MarkReady(ctx context.Context, id int64, update *ReadyUpdate) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error)

	// ListStuck returns queued videos queued before queuedBefore and processing videos whose
	// heartbeat (or start, when no heartbeat was written) is older than heartbeatBefore.
	ListStuck(ctx context.Context, queuedBefore, heartbeatBefore time.Time) ([]*models.Video, error)
	CountByState(ctx context.Context) (map[models.ProcessingState]int, error)
}
