package videos

import (
	"context"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
)

type UseCase interface {
	// UploadURL presigns a direct upload of an original. The returned path is what Register takes.
	UploadURL(ctx context.Context, input *models.UploadURLInput) (*models.UploadURL, error)
	Register(ctx context.Context, input *models.RegisterVideoInput) (*models.Video, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*models.VideoStatus, error)
	ListLogs(ctx context.Context, id uuid.UUID, pq *utils.Pagination) (*models.ProcessingLogList, error)

	Enqueue(ctx context.Context, videoID int64, reason string) (*models.EnqueueResult, error)
	Run(ctx context.Context, videoID int64) error
	Heartbeat(ctx context.Context, videoID int64) (bool, error)
	MarkFailed(ctx context.Context, videoID int64, reason string) (bool, error)
}
