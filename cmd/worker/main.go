package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/media"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	videoRepository "github.com/amankumarsingh77/video-ingest/internal/videos/repository"
	videoUsecase "github.com/amankumarsingh77/video-ingest/internal/videos/usecase"
	"github.com/amankumarsingh77/video-ingest/internal/worker"
	"github.com/amankumarsingh77/video-ingest/pkg/db/aws"
	"github.com/amankumarsingh77/video-ingest/pkg/db/postgres"
	clientRedis "github.com/amankumarsingh77/video-ingest/pkg/db/redis"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// a worker finishing its current encode may need a while
	shutdownTimeout = 10 * time.Minute
	metricsAddr     = ":9102"
)

func main() {
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
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Workers: %d", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Worker.WorkerCount)

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

	var s3Client *s3.Client
	if cfg.Storage.Driver == "s3" {
		s3Client, err = aws.NewS3Client(context.Background(), cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			appLogger.Fatalf("S3 init: %s", err)
		}
	}
	store, err := storage.NewFromConfig(cfg, s3Client)
	if err != nil {
		appLogger.Fatalf("Storage init: %s", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	vRepo := videoRepository.NewVideoRepo(psqlDB)
	logRepo := videoRepository.NewLogRepo(psqlDB)
	jobRepo := videoRepository.NewJobRedisRepo(redisClient, cfg.Redis.JobQueueKey, cfg.Redis.LeasePrefix)
	tools := videos.NewMediaTools(media.NewCommandRunner(), cfg.Processing)
	videoUC := videoUsecase.NewVideoUseCase(cfg, vRepo, logRepo, jobRepo, store, tools, m, appLogger)

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Errorf("metrics server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(cfg, videoUC, jobRepo, m, appLogger)
	w.Start(ctx)
	<-ctx.Done()
	appLogger.Info("Shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		appLogger.Warnf("Worker shutdown: %v", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	appLogger.Info("Worker exited properly")
}
