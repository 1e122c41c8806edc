// Command stuckjobs reports videos stuck in the queue or in processing. With -fix it marks
// them failed, with -schedule it keeps running the fix on Processing.StuckSweepSchedule.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/stuckjobs/scheduler"
	stuckUsecase "github.com/amankumarsingh77/video-ingest/internal/stuckjobs/usecase"
	videoRepository "github.com/amankumarsingh77/video-ingest/internal/videos/repository"
	"github.com/amankumarsingh77/video-ingest/pkg/db/postgres"
	clientRedis "github.com/amankumarsingh77/video-ingest/pkg/db/redis"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
)

func main() {
	fix := flag.Bool("fix", false, "mark stuck videos as failed")
	schedule := flag.Bool("schedule", false, "keep running the fix on the configured schedule")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	flag.Parse()

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

	vRepo := videoRepository.NewVideoRepo(psqlDB)
	logRepo := videoRepository.NewLogRepo(psqlDB)
	jobRepo := videoRepository.NewJobRedisRepo(redisClient, cfg.Redis.JobQueueKey, cfg.Redis.LeasePrefix)
	uc := stuckUsecase.NewStuckJobsUseCase(cfg, vRepo, logRepo, jobRepo, metrics.NewNop(), appLogger)

	if *schedule {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s, err := scheduler.NewScheduler(uc, cfg.Processing.StuckSweepSchedule, appLogger)
		if err != nil {
			appLogger.Fatalf("Scheduler init: %s", err)
		}
		if err := s.Start(ctx); err != nil {
			appLogger.Fatalf("Scheduler start: %s", err)
		}
		<-ctx.Done()
		s.Stop()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *fix {
		res, err := uc.DetectAndFix(ctx)
		if err != nil {
			appLogger.Fatalf("DetectAndFix: %s", err)
		}
		if *asJSON {
			printJSON(res)
			return
		}
		fmt.Printf("Marked %d stuck in queue and %d stuck in processing as failed\n",
			res.StuckInQueueCount, res.StuckInProcessingCount)
		return
	}

	report, err := uc.Detect(ctx)
	if err != nil {
		appLogger.Fatalf("Detect: %s", err)
	}
	if *asJSON {
		printJSON(report)
		return
	}
	printReport(report, cfg)
}

func printReport(r *models.StuckReport, cfg *config.Config) {
	fmt.Printf("Queued: %d  Processing: %d  Stuck: %d\n", r.QueuedCount, r.ProcessingCount, len(r.Stuck))
	for _, sv := range r.Stuck {
		limit := cfg.Processing.QueueTimeout
		if sv.Kind == models.StuckInProcessing {
			limit = cfg.Processing.HeartbeatTimeout
		}
		fmt.Printf("  video %d (%s) stuck in %s for %s (limit %s)\n",
			sv.VideoID, sv.UUID, sv.Kind, sv.Waiting.Truncate(time.Second), limit)
	}
	if len(r.Stuck) > 0 {
		fmt.Println("Run with -fix to mark them failed.")
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
