package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
)

const (
	errorBackoff      = time.Second
	releaseTimeout    = 5 * time.Second
	minRenewInterval  = time.Second
	defaultRenewEvery = 15 * time.Second
	leaseRetryDelay   = time.Second
)

// JobRunner is the part of videos.UseCase the worker drives.
type JobRunner interface {
	Run(ctx context.Context, videoID int64) error
}

type Worker struct {
	cfg     *config.Config
	runner  JobRunner
	queue   videos.JobConsumer
	metrics *metrics.Metrics
	logger  logger.Logger

	sampleCPU   utils.CPUSampler
	leaseTTL    time.Duration
	renewEvery  time.Duration
	retryDelay  time.Duration
	stopDequeue context.CancelFunc
	abortJobs   context.CancelFunc
	wg          sync.WaitGroup
}

func NewWorker(cfg *config.Config, runner JobRunner, queue videos.JobConsumer, m *metrics.Metrics, logger logger.Logger) *Worker {
	if m == nil {
		m = metrics.NewNop()
	}
	w := &Worker{
		cfg:        cfg,
		runner:     runner,
		queue:      queue,
		metrics:    m,
		logger:     logger,
		sampleCPU:  utils.SampleCPU,
		leaseTTL:   cfg.Processing.HeartbeatTimeout,
		renewEvery: cfg.Processing.HeartbeatInterval,
		retryDelay: leaseRetryDelay,
	}
	if w.leaseTTL <= 0 {
		w.leaseTTL = 2 * time.Minute
	}
	if w.renewEvery <= 0 {
		w.renewEvery = defaultRenewEvery
	}
	return w
}

// Start launches Worker.WorkerCount consumers. Cancelling ctx stops dequeuing only, jobs in
// flight keep running until Shutdown gives up on them.
func (w *Worker) Start(ctx context.Context) {
	loopCtx, stop := context.WithCancel(ctx)
	jobCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	w.stopDequeue, w.abortJobs = stop, abort

	count := w.cfg.Worker.WorkerCount
	if count < 1 {
		count = 1
	}
	w.logger.Infof("Starting %d workers", count)
	for i := 1; i <= count; i++ {
		w.wg.Add(1)
		go w.consume(loopCtx, jobCtx, i)
	}
}

// Shutdown stops dequeuing and waits for running jobs. When ctx expires first the jobs are
// cancelled, which kills their encoders and marks the videos failed.
func (w *Worker) Shutdown(ctx context.Context) error {
	if w.stopDequeue == nil {
		return nil
	}
	w.stopDequeue()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.abortJobs()
		return nil
	case <-ctx.Done():
		w.logger.Warn("Shutdown - timed out waiting for jobs, cancelling them")
		w.abortJobs()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) consume(ctx, jobCtx context.Context, id int) {
	defer w.wg.Done()
	for ctx.Err() == nil {
		if ok, usage := utils.CheckCPUUsage(ctx, w.sampleCPU, w.cfg.Worker.MaxCPUUsage); !ok {
			w.logger.Infof("Worker %d - CPU usage is high: %.1f%%, waiting", id, usage)
			sleep(ctx, w.cfg.Worker.CPUCheckInterval)
			continue
		}

		job, err := w.queue.Dequeue(ctx, w.cfg.Worker.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Errorf("Worker %d - Dequeue error: %v", id, err)
			sleep(ctx, errorBackoff)
			continue
		}
		if job == nil {
			continue
		}
		if requeued := w.handle(jobCtx, id, job); requeued {
			sleep(ctx, w.retryDelay)
		}
	}
}

// handle runs one job under the video lease. A job whose video is leased by another run goes
// back on the queue, it may be a retry enqueued before the old run noticed it lost the video.
// Once it has waited a full lease TTL it runs anyway and the state CAS inside Run decides.
// It reports whether the job was put back.
func (w *Worker) handle(ctx context.Context, id int, job *models.EncodeJob) bool {
	leased, err := w.queue.AcquireLease(ctx, job.VideoID, w.leaseTTL)
	switch {
	case err != nil:
		// the state CAS inside Run still rejects a second runner
		w.logger.Warnf("Worker %d - AcquireLease error for video %d: %v", id, job.VideoID, err)
	case !leased:
		if job.LeaseWaitSince.IsZero() {
			job.LeaseWaitSince = time.Now().UTC()
		}
		if time.Since(job.LeaseWaitSince) < w.leaseTTL {
			if err := w.queue.Requeue(ctx, job); err != nil {
				w.logger.Errorf("Worker %d - Requeue error for video %d: %v", id, job.VideoID, err)
				return false
			}
			w.logger.Infof("Worker %d - video %d is leased by another run, job put back on the queue", id, job.VideoID)
			return true
		}
		w.logger.Warnf("Worker %d - video %d still leased after %s, running without the lease", id, job.VideoID, w.leaseTTL)
	}

	if leased {
		renewCtx, stopRenew := context.WithCancel(ctx)
		renewDone := make(chan struct{})
		go func() {
			defer close(renewDone)
			w.renewLease(renewCtx, job.VideoID)
		}()
		defer func() {
			stopRenew()
			<-renewDone
			w.releaseLease(ctx, id, job.VideoID)
		}()
	}

	w.metrics.WorkersBusy.Inc()
	started := time.Now()
	w.logger.Infof("Worker %d - processing video %d (%s)", id, job.VideoID, job.Reason)
	runErr := w.runner.Run(ctx, job.VideoID)
	w.metrics.WorkersBusy.Dec()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		w.logger.Errorf("Worker %d - Run error for video %d: %v", id, job.VideoID, runErr)
		return false
	}
	w.logger.Infof("Worker %d - video %d done in %s", id, job.VideoID, time.Since(started).Truncate(time.Millisecond))
	return false
}

func (w *Worker) releaseLease(ctx context.Context, id int, videoID int64) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := w.queue.ReleaseLease(releaseCtx, videoID); err != nil {
		w.logger.Warnf("Worker %d - ReleaseLease error for video %d: %v", id, videoID, err)
	}
}

func (w *Worker) renewLease(ctx context.Context, videoID int64) {
	every := w.renewEvery
	if every < minRenewInterval && w.leaseTTL >= minRenewInterval {
		every = minRenewInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.RenewLease(ctx, videoID, w.leaseTTL); err != nil && ctx.Err() == nil {
				w.logger.Warnf("renewLease - RenewLease error for video %d: %v", videoID, err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
