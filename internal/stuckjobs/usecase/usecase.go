package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/stuckjobs"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
)

const (
	defaultQueueTimeout     = 2 * time.Minute
	defaultHeartbeatTimeout = 2 * time.Minute
)

type stuckJobsUC struct {
	videoRepo        videos.Repository
	logRepo          videos.LogRepository
	queue            videos.JobConsumer
	queueTimeout     time.Duration
	heartbeatTimeout time.Duration
	metrics          *metrics.Metrics
	logger           logger.Logger
	now              func() time.Time

	// one sweep at a time, whatever triggered it
	mu sync.Mutex
}

func NewStuckJobsUseCase(
	cfg *config.Config,
	videoRepo videos.Repository,
	logRepo videos.LogRepository,
	queue videos.JobConsumer,
	m *metrics.Metrics,
	log logger.Logger,
) stuckjobs.UseCase {
	if m == nil {
		m = metrics.NewNop()
	}
	uc := &stuckJobsUC{
		videoRepo:        videoRepo,
		logRepo:          logRepo,
		queue:            queue,
		queueTimeout:     cfg.Processing.QueueTimeout,
		heartbeatTimeout: cfg.Processing.HeartbeatTimeout,
		metrics:          m,
		logger:           log,
		now:              func() time.Time { return time.Now().UTC() },
	}
	if uc.queueTimeout <= 0 {
		uc.queueTimeout = defaultQueueTimeout
	}
	if uc.heartbeatTimeout <= 0 {
		uc.heartbeatTimeout = defaultHeartbeatTimeout
	}
	return uc
}

func (s *stuckJobsUC) Detect(ctx context.Context) (*models.StuckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stuck, err := s.findStuck(ctx, now)
	if err != nil {
		return nil, err
	}
	counts, err := s.videoRepo.CountByState(ctx)
	if err != nil {
		s.logger.Errorf("Detect - CountByState error: %v", err)
		return nil, err
	}
	return &models.StuckReport{
		QueuedCount:     counts[models.StateQueued],
		ProcessingCount: counts[models.StateProcessing],
		Stuck:           stuck,
		CheckedAt:       now,
	}, nil
}

func (s *stuckJobsUC) DetectAndFix(ctx context.Context) (*models.StuckFixResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stuck, err := s.findStuck(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &models.StuckFixResult{
		FixedIDs:  make([]int64, 0, len(stuck)),
		CheckedAt: now,
	}
	for _, sv := range stuck {
		reason := s.reason(sv.Kind)
		ok, err := s.videoRepo.MarkFailed(ctx, sv.VideoID, reason, now)
		if err != nil {
			s.logger.Errorf("DetectAndFix - MarkFailed error for video %d: %v", sv.VideoID, err)
			continue
		}
		if !ok {
			// moved on between the read and the write, the next sweep re-evaluates it
			continue
		}
		switch sv.Kind {
		case models.StuckInQueue:
			result.StuckInQueueCount++
		case models.StuckInProcessing:
			result.StuckInProcessingCount++
		}
		result.FixedIDs = append(result.FixedIDs, sv.VideoID)
		s.metrics.StuckFixedTotal.WithLabelValues(string(sv.Kind)).Inc()
		s.metrics.JobsTotal.WithLabelValues(string(models.StateFailed)).Inc()

		if err = s.logRepo.Append(ctx, &models.ProcessingLogEntry{
			VideoID: sv.VideoID,
			JobType: models.JobTypeStuckDetector,
			Status:  models.LogStatusError,
			Message: reason,
			Metadata: models.LogMetadata{
				Reason:         string(sv.Kind),
				Error:          fmt.Sprintf("%v after %s", videos.ErrStuckTimeout, sv.Waiting.Truncate(time.Second)),
				TimeoutSeconds: int(s.timeout(sv.Kind).Seconds()),
			},
		}); err != nil {
			s.logger.Warnf("DetectAndFix - Append error: %v", err)
		}
		s.logger.Warnf("DetectAndFix - video %d marked failed: %s", sv.VideoID, reason)
	}
	return result, nil
}

func (s *stuckJobsUC) Stats(ctx context.Context) (*models.QueueStats, error) {
	counts, err := s.videoRepo.CountByState(ctx)
	if err != nil {
		s.logger.Errorf("Stats - CountByState error: %v", err)
		return nil, err
	}
	length, err := s.queue.Length(ctx)
	if err != nil {
		s.logger.Errorf("Stats - queue.Length error: %v", err)
		return nil, err
	}
	s.metrics.QueueLength.Set(float64(length))

	stuck, err := s.findStuck(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return &models.QueueStats{
		ByState:     counts,
		QueueLength: length,
		Stuck:       len(stuck),
	}, nil
}

func (s *stuckJobsUC) findStuck(ctx context.Context, now time.Time) ([]*models.StuckVideo, error) {
	candidates, err := s.videoRepo.ListStuck(ctx, now.Add(-s.queueTimeout), now.Add(-s.heartbeatTimeout))
	if err != nil {
		s.logger.Errorf("findStuck - ListStuck error: %v", err)
		return nil, err
	}
	stuck := make([]*models.StuckVideo, 0, len(candidates))
	for _, v := range candidates {
		if sv := s.classify(v, now); sv != nil {
			stuck = append(stuck, sv)
		}
	}
	return stuck, nil
}

// classify re-checks a candidate so the rules hold whatever the repository returned.
func (s *stuckJobsUC) classify(v *models.Video, now time.Time) *models.StuckVideo {
	sv := &models.StuckVideo{
		VideoID:         v.ID,
		UUID:            v.UUID,
		State:           v.ProcessingState,
		QueuedAt:        v.QueuedAt,
		StartedAt:       v.StartedAt,
		LastHeartbeatAt: v.LastHeartbeatAt,
	}
	switch v.ProcessingState {
	case models.StateQueued:
		if v.QueuedAt == nil {
			return nil
		}
		sv.Kind = models.StuckInQueue
		sv.Waiting = now.Sub(*v.QueuedAt)
		if sv.Waiting <= s.queueTimeout {
			return nil
		}
	case models.StateProcessing:
		last := v.LastHeartbeatAt
		if last == nil {
			last = v.StartedAt
		}
		if last == nil {
			return nil
		}
		sv.Kind = models.StuckInProcessing
		sv.Waiting = now.Sub(*last)
		if sv.Waiting <= s.heartbeatTimeout {
			return nil
		}
	default:
		return nil
	}
	return sv
}

func (s *stuckJobsUC) timeout(kind models.StuckKind) time.Duration {
	if kind == models.StuckInQueue {
		return s.queueTimeout
	}
	return s.heartbeatTimeout
}

func (s *stuckJobsUC) reason(kind models.StuckKind) string {
	if kind == models.StuckInQueue {
		return fmt.Sprintf("stuck in queue for more than %s: no worker picked up the job", s.queueTimeout)
	}
	return fmt.Sprintf("no heartbeat for more than %s: the encoder crashed, hung or its worker was killed", s.heartbeatTimeout)
}
