package videos

import (
	"context"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
)

// LogRepository is the append-only processing log.
type LogRepository interface {
	Append(ctx context.Context, entry *models.ProcessingLogEntry) error
	ListByVideo(ctx context.Context, videoID int64, pq *utils.Pagination) (*models.ProcessingLogList, error)
	// Prune keeps the newest keep entries of a video and returns how many were removed.
	Prune(ctx context.Context, videoID int64, keep int) (int64, error)
}
