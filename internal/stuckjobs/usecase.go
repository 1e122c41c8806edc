package stuckjobs

import (
	"context"

	"github.com/amankumarsingh77/video-ingest/internal/models"
)

// UseCase finds videos whose job was lost in the queue or whose worker stopped heartbeating.
type UseCase interface {
	// Detect is read-only.
	Detect(ctx context.Context) (*models.StuckReport, error)
	// DetectAndFix marks every stuck video failed. Running it twice fixes nothing the second time.
	DetectAndFix(ctx context.Context) (*models.StuckFixResult, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
}
