package main

import (
	"context"
	"log"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/server"
	"github.com/amankumarsingh77/video-ingest/pkg/db/aws"
	"github.com/amankumarsingh77/video-ingest/pkg/db/postgres"
	"github.com/amankumarsingh77/video-ingest/pkg/db/redis"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func main() {
	log.Println("Starting server")
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
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	psqlDB, err := postgres.NewPsqlDB(cfg)
	if err != nil {
		appLogger.Fatalf("Postgresql init: %s", err)
	}
	defer psqlDB.Close()
	appLogger.Infof("Postgres connected, Status: %#v", psqlDB.Stats())

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("Redis init: %s", err)
	}
	defer redisClient.Close()
	appLogger.Info("Redis connected")

	var s3Client *s3.Client
	if cfg.Storage.Driver == "s3" {
		s3Client, err = aws.NewS3Client(context.Background(), cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			appLogger.Fatalf("S3 init: %s", err)
		}
		appLogger.Infof("S3 client ready, bucket: %s", cfg.S3.Bucket)
	}

	s := server.NewServer(cfg, psqlDB, redisClient, s3Client, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Fatal(err)
	}
}
