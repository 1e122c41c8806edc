package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

type jobRedisRepo struct {
	redisClient *redis.Client
	queueKey    string
	leasePrefix string
}

// NewJobRedisRepo backs both sides of the job queue with a Redis list: producers LPUSH,
// workers BRPOP, so jobs are consumed in FIFO order.
func NewJobRedisRepo(redisClient *redis.Client, queueKey, leasePrefix string) videos.JobRepository {
	return &jobRedisRepo{
		redisClient: redisClient,
		queueKey:    queueKey,
		leasePrefix: leasePrefix,
	}
}

func (r *jobRedisRepo) Enqueue(ctx context.Context, videoID int64, job *models.EncodeJob) error {
	if job.VideoID == 0 {
		job.VideoID = videoID
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "jobRedisRepo.Enqueue.Marshal")
	}
	if err = r.redisClient.LPush(ctx, r.queueKey, data).Err(); err != nil {
		return errors.Wrap(err, "jobRedisRepo.Enqueue.LPush")
	}
	return nil
}

func (r *jobRedisRepo) Dequeue(ctx context.Context, timeout time.Duration) (*models.EncodeJob, error) {
	res, err := r.redisClient.BRPop(ctx, timeout, r.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "jobRedisRepo.Dequeue.BRPop")
	}
	if len(res) != 2 {
		return nil, errors.Errorf("jobRedisRepo.Dequeue: unexpected reply %v", res)
	}
	job := &models.EncodeJob{}
	if err = json.Unmarshal([]byte(res[1]), job); err != nil {
		return nil, errors.Wrap(err, "jobRedisRepo.Dequeue.Unmarshal")
	}
	return job, nil
}

func (r *jobRedisRepo) Requeue(ctx context.Context, job *models.EncodeJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "jobRedisRepo.Requeue.Marshal")
	}
	if err = r.redisClient.LPush(ctx, r.queueKey, data).Err(); err != nil {
		return errors.Wrap(err, "jobRedisRepo.Requeue.LPush")
	}
	return nil
}

func (r *jobRedisRepo) AcquireLease(ctx context.Context, videoID int64, ttl time.Duration) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, r.leaseKey(videoID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "jobRedisRepo.AcquireLease.SetNX")
	}
	return ok, nil
}

func (r *jobRedisRepo) RenewLease(ctx context.Context, videoID int64, ttl time.Duration) error {
	if err := r.redisClient.Expire(ctx, r.leaseKey(videoID), ttl).Err(); err != nil {
		return errors.Wrap(err, "jobRedisRepo.RenewLease.Expire")
	}
	return nil
}

func (r *jobRedisRepo) ReleaseLease(ctx context.Context, videoID int64) error {
	if err := r.redisClient.Del(ctx, r.leaseKey(videoID)).Err(); err != nil {
		return errors.Wrap(err, "jobRedisRepo.ReleaseLease.Del")
	}
	return nil
}

func (r *jobRedisRepo) Length(ctx context.Context) (int64, error) {
	n, err := r.redisClient.LLen(ctx, r.queueKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "jobRedisRepo.Length.LLen")
	}
	return n, nil
}

func (r *jobRedisRepo) leaseKey(videoID int64) string {
	return r.leasePrefix + strconv.FormatInt(videoID, 10)
}
