// Command enqueue registers an uploaded original and puts it on the job queue, or re-queues an
// existing video by UUID.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/media"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	videoRepository "github.com/amankumarsingh77/video-ingest/internal/videos/repository"
	videoUsecase "github.com/amankumarsingh77/video-ingest/internal/videos/usecase"
	"github.com/amankumarsingh77/video-ingest/pkg/db/aws"
	"github.com/amankumarsingh77/video-ingest/pkg/db/postgres"
	clientRedis "github.com/amankumarsingh77/video-ingest/pkg/db/redis"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

func main() {
	original := flag.String("original", "", "storage key of an uploaded original to register and queue")
	visibility := flag.String("visibility", string(models.VisibilityPublic), "public, unlisted or private")
	videoUUID := flag.String("uuid", "", "uuid of an existing video to queue again")
	reason := flag.String("reason", "cli", "reason recorded in the processing log")
	flag.Parse()

	if (*original == "") == (*videoUUID == "") {
		log.Fatal("exactly one of -original or -uuid is required")
	}

	cfgFile, err := config.LoadConfig(config.GetConfigPath())
	if err != nil {
		log.Fatalf("LoadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("ParseConfig: %v", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()

	psqlDB, err := postgres.NewPsqlDB(cfg)
	if err != nil {
		appLogger.Fatalf("Postgresql init: %s", err)
	}
	defer psqlDB.Close()

	redisClient, err := clientRedis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("Redis init: %s", err)
	}
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var s3Client *s3.Client
	if cfg.Storage.Driver == "s3" {
		s3Client, err = aws.NewS3Client(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			appLogger.Fatalf("S3 init: %s", err)
		}
	}
	store, err := storage.NewFromConfig(cfg, s3Client)
	if err != nil {
		appLogger.Fatalf("Storage init: %s", err)
	}

	videoUC := videoUsecase.NewVideoUseCase(
		cfg,
		videoRepository.NewVideoRepo(psqlDB),
		videoRepository.NewLogRepo(psqlDB),
		videoRepository.NewJobRedisRepo(redisClient, cfg.Redis.JobQueueKey, cfg.Redis.LeasePrefix),
		store,
		videos.NewMediaTools(media.NewCommandRunner(), cfg.Processing),
		metrics.NewNop(),
		appLogger,
	)

	var video *models.Video
	if *original != "" {
		video, err = videoUC.Register(ctx, &models.RegisterVideoInput{
			OriginalPath: *original,
			Visibility:   models.Visibility(*visibility),
		})
		if err != nil {
			appLogger.Fatalf("Register: %s", err)
		}
	} else {
		id, err := uuid.Parse(*videoUUID)
		if err != nil {
			appLogger.Fatalf("invalid -uuid: %s", err)
		}
		if video, err = videoUC.GetByUUID(ctx, id); err != nil {
			appLogger.Fatalf("GetByUUID: %s", err)
		}
	}

	res, err := videoUC.Enqueue(ctx, video.ID, *reason)
	if err != nil {
		appLogger.Fatalf("Enqueue video %s: %s", video.UUID, err)
	}
	fmt.Printf("video %s (id %d): %s\n", video.UUID, video.ID, res.Message)
}
