package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
)

const (
	persistTimeout = 10 * time.Second
	uploadURLTTL   = 60 * time.Minute
)

var videoFileRegex = regexp.MustCompile(`(?i)^[^/\\]+\.(mp4|mkv|avi|mov|wmv|flv|webm|m4v|mpeg|mpg|3gp|ogv|ts|mxf)$`)

type videoUC struct {
	cfg       *config.Config
	videoRepo videos.Repository
	logRepo   videos.LogRepository
	queue     videos.JobQueue
	store     storage.Storage
	tools     videos.MediaTools
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

func NewVideoUseCase(
	cfg *config.Config,
	videoRepo videos.Repository,
	logRepo videos.LogRepository,
	queue videos.JobQueue,
	store storage.Storage,
	tools videos.MediaTools,
	m *metrics.Metrics,
	log logger.Logger,
) videos.UseCase {
	if m == nil {
		m = metrics.NewNop()
	}
	return &videoUC{
		cfg:       cfg,
		videoRepo: videoRepo,
		logRepo:   logRepo,
		queue:     queue,
		store:     store,
		tools:     tools,
		metrics:   m,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (v *videoUC) UploadURL(ctx context.Context, input *models.UploadURLInput) (*models.UploadURL, error) {
	if err := utils.ValidateStruct(ctx, input); err != nil {
		return nil, fmt.Errorf("%w: %v", videos.ErrInvalidInput, err)
	}
	if !videoFileRegex.MatchString(input.Name) {
		return nil, fmt.Errorf("%w: invalid file format: %s", videos.ErrInvalidInput, input.Name)
	}
	presigner, ok := v.store.(storage.Presigner)
	if !ok {
		return nil, videos.ErrUploadUnsupported
	}

	key := path.Join("uploads", uuid.NewString(), input.Name)
	url, err := presigner.PresignUpload(ctx, key, input.MimeType, input.Size, uploadURLTTL)
	if err != nil {
		v.logger.Errorf("UploadURL - PresignUpload error: %v", err)
		return nil, err
	}
	return &models.UploadURL{
		URL:          url,
		OriginalPath: key,
		ExpiresAt:    v.now().Add(uploadURLTTL),
	}, nil
}

func (v *videoUC) Register(ctx context.Context, input *models.RegisterVideoInput) (*models.Video, error) {
	if err := utils.ValidateStruct(ctx, input); err != nil {
		v.logger.Errorf("Register - ValidateStruct error: %v", err)
		return nil, fmt.Errorf("%w: %v", videos.ErrInvalidInput, err)
	}
	key, err := storage.CleanKey(input.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", videos.ErrInvalidInput, err)
	}
	if _, err = v.store.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: original %q is not stored", videos.ErrInvalidInput, key)
		}
		v.logger.Errorf("Register - Stat error: %v", err)
		return nil, err
	}

	video, err := v.videoRepo.Create(ctx, &models.Video{
		UUID:         uuid.New(),
		OriginalPath: key,
		Visibility:   input.Visibility,
	})
	if err != nil {
		v.logger.Errorf("Register - Create error: %v", err)
		return nil, err
	}
	v.logger.Infof("Registered video %s (id %d) for %s", video.UUID, video.ID, key)
	return video, nil
}

func (v *videoUC) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return v.videoRepo.GetByUUID(ctx, id)
}

func (v *videoUC) GetStatus(ctx context.Context, id uuid.UUID) (*models.VideoStatus, error) {
	video, err := v.videoRepo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return video.Status(), nil
}

func (v *videoUC) ListLogs(ctx context.Context, id uuid.UUID, pq *utils.Pagination) (*models.ProcessingLogList, error) {
	video, err := v.videoRepo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return v.logRepo.ListByVideo(ctx, video.ID, pq)
}

// Enqueue moves a pending, failed or ready video to queued and hands it to the job queue.
// The state write happens first so a fast worker always finds the row queued.
func (v *videoUC) Enqueue(ctx context.Context, videoID int64, reason string) (*models.EnqueueResult, error) {
	video, err := v.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !video.ProcessingState.Enqueueable() {
		return nil, videos.ErrAlreadyInProgress
	}
	if reason == "" {
		reason = "enqueue"
	}

	queuedAt := v.now()
	ok, err := v.videoRepo.MarkQueued(ctx, videoID, queuedAt)
	if err != nil {
		v.logger.Errorf("Enqueue - MarkQueued error: %v", err)
		return nil, err
	}
	if !ok {
		return nil, videos.ErrAlreadyInProgress
	}

	job := &models.EncodeJob{
		VideoID:    video.ID,
		UUID:       video.UUID,
		Reason:     reason,
		EnqueuedAt: queuedAt,
	}
	if err = v.queue.Enqueue(ctx, videoID, job); err != nil {
		v.logger.Errorf("Enqueue - queue.Enqueue error: %v", err)
		msg := fmt.Sprintf("failed to dispatch job: %v", err)
		if _, ferr := v.markFailed(ctx, videoID, msg); ferr != nil {
			v.logger.Errorf("Enqueue - MarkFailed error: %v", ferr)
		}
		v.appendLog(ctx, videoID, models.JobTypeEnqueue, models.LogStatusError, nil, msg, models.LogMetadata{Reason: reason, Error: err.Error()})
		return nil, fmt.Errorf("dispatch job: %w", err)
	}

	v.appendLog(ctx, videoID, models.JobTypeEnqueue, models.LogStatusInfo, nil, "queued for processing", models.LogMetadata{Reason: reason})
	v.logger.Infof("Enqueued video %d (%s)", videoID, reason)
	return &models.EnqueueResult{Success: true, Message: "queued"}, nil
}

func (v *videoUC) Heartbeat(ctx context.Context, videoID int64) (bool, error) {
	return v.videoRepo.Heartbeat(ctx, videoID, v.now())
}

func (v *videoUC) MarkFailed(ctx context.Context, videoID int64, reason string) (bool, error) {
	ok, err := v.markFailed(ctx, videoID, reason)
	if err != nil {
		return false, err
	}
	if ok {
		v.metrics.JobsTotal.WithLabelValues(string(models.StateFailed)).Inc()
	}
	return ok, nil
}

func (v *videoUC) markFailed(ctx context.Context, videoID int64, reason string) (bool, error) {
	pctx, cancel := persistContext(ctx)
	defer cancel()
	return v.videoRepo.MarkFailed(pctx, videoID, reason, v.now())
}

// appendLog writes one processing log entry. Log writes never fail the caller.
func (v *videoUC) appendLog(ctx context.Context, videoID int64, jobType models.JobType, status models.LogStatus, progress *int, message string, meta models.LogMetadata) {
	pctx, cancel := persistContext(ctx)
	defer cancel()
	entry := &models.ProcessingLogEntry{
		VideoID:  videoID,
		JobType:  jobType,
		Status:   status,
		Progress: progress,
		Message:  message,
		Metadata: meta,
	}
	if err := v.logRepo.Append(pctx, entry); err != nil {
		v.logger.Warnf("appendLog - Append error: %v", err)
	}
}

// persistContext detaches state writes from run cancellation so a cancelled run can still
// record how it ended.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
