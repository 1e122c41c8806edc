package repository

import (
	"context"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type logRepo struct {
	db *sqlx.DB
}

func NewLogRepo(db *sqlx.DB) videos.LogRepository {
	return &logRepo{db: db}
}

func (l *logRepo) Append(ctx context.Context, entry *models.ProcessingLogEntry) error {
	if err := l.db.QueryRowxContext(
		ctx,
		appendLogQuery,
		entry.VideoID,
		entry.JobType,
		entry.Status,
		entry.Progress,
		entry.Message,
		entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return errors.Wrap(err, "logRepo.Append.Scan")
	}
	return nil
}

func (l *logRepo) ListByVideo(ctx context.Context, videoID int64, pq *utils.Pagination) (*models.ProcessingLogList, error) {
	var totalCount int
	if err := l.db.GetContext(ctx, &totalCount, countLogsQuery, videoID); err != nil {
		return nil, errors.Wrap(err, "logRepo.ListByVideo.GetContext.totalCount")
	}
	if totalCount == 0 {
		return &models.ProcessingLogList{
			Entries:  make([]*models.ProcessingLogEntry, 0),
			Page:     pq.GetPage(),
			PageSize: pq.GetSize(),
		}, nil
	}

	rows, err := l.db.QueryxContext(ctx, listLogsQuery, videoID, pq.GetOffset(), pq.GetLimit())
	if err != nil {
		return nil, errors.Wrap(err, "logRepo.ListByVideo.QueryxContext")
	}
	defer rows.Close()

	entries := make([]*models.ProcessingLogEntry, 0, pq.GetSize())
	for rows.Next() {
		entry := &models.ProcessingLogEntry{}
		if err = rows.StructScan(entry); err != nil {
			return nil, errors.Wrap(err, "logRepo.ListByVideo.StructScan")
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "logRepo.ListByVideo.rows.Err")
	}

	return &models.ProcessingLogList{
		Entries:    entries,
		TotalCount: totalCount,
		TotalPages: utils.GetTotalPages(totalCount, pq.GetSize()),
		Page:       pq.GetPage(),
		PageSize:   pq.GetSize(),
		HasMore:    utils.GetHasMore(pq.GetPage(), totalCount, pq.GetSize()),
	}, nil
}

func (l *logRepo) Prune(ctx context.Context, videoID int64, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := l.db.ExecContext(ctx, pruneLogsQuery, videoID, keep)
	if err != nil {
		return 0, errors.Wrap(err, "logRepo.Prune.ExecContext")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "logRepo.Prune.RowsAffected")
	}
	return n, nil
}
