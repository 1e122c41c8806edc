package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type videoRepo struct {
	db *sqlx.DB
}

func NewVideoRepo(db *sqlx.DB) videos.Repository {
	return &videoRepo{
		db: db,
	}
}

func (v *videoRepo) Create(ctx context.Context, video *models.Video) (*models.Video, error) {
	visibility := video.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	created := &models.Video{}
	if err := v.db.QueryRowxContext(
		ctx,
		createVideoQuery,
		video.UUID,
		video.OriginalPath,
		visibility,
	).StructScan(created); err != nil {
		return nil, errors.Wrap(err, "videoRepo.Create.StructScan")
	}
	return created, nil
}

func (v *videoRepo) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	video := &models.Video{}
	if err := v.db.GetContext(ctx, video, getVideoByIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, videos.ErrNotFound
		}
		return nil, errors.Wrap(err, "videoRepo.GetByID.GetContext")
	}
	return video, nil
}

func (v *videoRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	video := &models.Video{}
	if err := v.db.GetContext(ctx, video, getVideoByUUIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, videos.ErrNotFound
		}
		return nil, errors.Wrap(err, "videoRepo.GetByUUID.GetContext")
	}
	return video, nil
}

func (v *videoRepo) MarkQueued(ctx context.Context, id int64, queuedAt time.Time) (bool, error) {
	return v.execCAS(ctx, "MarkQueued", markQueuedQuery, id, queuedAt)
}

func (v *videoRepo) StartProcessing(ctx context.Context, id int64, startedAt time.Time) (bool, error) {
	return v.execCAS(ctx, "StartProcessing", startProcessingQuery, id, startedAt)
}

func (v *videoRepo) Heartbeat(ctx context.Context, id int64, at time.Time) (bool, error) {
	return v.execCAS(ctx, "Heartbeat", heartbeatQuery, id, at)
}

func (v *videoRepo) UpdateProgress(ctx context.Context, id int64, progress int) error {
	if _, err := v.db.ExecContext(ctx, updateProgressQuery, id, progress); err != nil {
		return errors.Wrap(err, "videoRepo.UpdateProgress.ExecContext")
	}
	return nil
}

func (v *videoRepo) SaveDuration(ctx context.Context, id int64, durationSeconds int) error {
	if _, err := v.db.ExecContext(ctx, saveDurationQuery, id, durationSeconds); err != nil {
		return errors.Wrap(err, "videoRepo.SaveDuration.ExecContext")
	}
	return nil
}

func (v *videoRepo) SaveThumbnail(ctx context.Context, id int64, path string) error {
	if _, err := v.db.ExecContext(ctx, saveThumbnailQuery, id, path); err != nil {
		return errors.Wrap(err, "videoRepo.SaveThumbnail.ExecContext")
	}
	return nil
}

func (v *videoRepo) MarkReady(ctx context.Context, id int64, update *videos.ReadyUpdate) (bool, error) {
	renditions := update.Renditions
	if renditions == nil {
		renditions = models.Renditions{}
	}
	return v.execCAS(ctx, "MarkReady", markReadyQuery,
		id,
		update.StreamPath,
		renditions,
		update.HLSMasterPath,
		update.FinishedAt,
	)
}

func (v *videoRepo) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	return v.execCAS(ctx, "MarkFailed", markFailedQuery, id, reason, at)
}

func (v *videoRepo) ListStuck(ctx context.Context, queuedBefore, heartbeatBefore time.Time) ([]*models.Video, error) {
	rows, err := v.db.QueryxContext(ctx, listStuckQuery, queuedBefore, heartbeatBefore)
	if err != nil {
		return nil, errors.Wrap(err, "videoRepo.ListStuck.QueryxContext")
	}
	defer rows.Close()

	stuck := make([]*models.Video, 0)
	for rows.Next() {
		video := &models.Video{}
		if err = rows.StructScan(video); err != nil {
			return nil, errors.Wrap(err, "videoRepo.ListStuck.StructScan")
		}
		stuck = append(stuck, video)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "videoRepo.ListStuck.rows.Err")
	}
	return stuck, nil
}

func (v *videoRepo) CountByState(ctx context.Context) (map[models.ProcessingState]int, error) {
	var rows []struct {
		State models.ProcessingState `db:"processing_state"`
		Total int                    `db:"total"`
	}
	if err := v.db.SelectContext(ctx, &rows, countByStateQuery); err != nil {
		return nil, errors.Wrap(err, "videoRepo.CountByState.SelectContext")
	}
	counts := map[models.ProcessingState]int{
		models.StatePending:    0,
		models.StateQueued:     0,
		models.StateProcessing: 0,
		models.StateReady:      0,
		models.StateFailed:     0,
	}
	for _, r := range rows {
		counts[r.State] = r.Total
	}
	return counts, nil
}

// execCAS runs a guarded UPDATE and reports whether a row matched.
func (v *videoRepo) execCAS(ctx context.Context, op string, query string, args ...interface{}) (bool, error) {
	res, err := v.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrapf(err, "videoRepo.%s.ExecContext", op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "videoRepo.%s.RowsAffected", op)
	}
	return n == 1, nil
}
