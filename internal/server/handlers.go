package server

import (
	"context"
	"net/http"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/media"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/middleware"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	streamHttp "github.com/amankumarsingh77/video-ingest/internal/stream/delivery/http"
	streamUsecase "github.com/amankumarsingh77/video-ingest/internal/stream/usecase"
	stuckHttp "github.com/amankumarsingh77/video-ingest/internal/stuckjobs/delivery/http"
	stuckUsecase "github.com/amankumarsingh77/video-ingest/internal/stuckjobs/usecase"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	videoHttp "github.com/amankumarsingh77/video-ingest/internal/videos/delivery/http"
	videoRepository "github.com/amankumarsingh77/video-ingest/internal/videos/repository"
	videoUsecase "github.com/amankumarsingh77/video-ingest/internal/videos/usecase"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 2 * time.Second

func (s *Server) MapHandlers(e *echo.Echo) error {
	store, err := storage.NewFromConfig(s.cfg, s.s3Client)
	if err != nil {
		return err
	}
	m := metrics.New(s.registry)

	vRepo := videoRepository.NewVideoRepo(s.db)
	logRepo := videoRepository.NewLogRepo(s.db)
	jobRepo := videoRepository.NewJobRedisRepo(s.redisClient, s.cfg.Redis.JobQueueKey, s.cfg.Redis.LeasePrefix)
	tools := videos.NewMediaTools(media.NewCommandRunner(), s.cfg.Processing)

	videoUC := videoUsecase.NewVideoUseCase(s.cfg, vRepo, logRepo, jobRepo, store, tools, m, s.logger)
	streamUC := streamUsecase.NewStreamUseCase(s.cfg, vRepo, store, s.logger)
	stuckUC := stuckUsecase.NewStuckJobsUseCase(s.cfg, vRepo, logRepo, jobRepo, m, s.logger)

	videoHandlers := videoHttp.NewVideoHandler(s.cfg, videoUC, s.logger)
	streamHandlers := streamHttp.NewStreamHandler(streamUC, m, s.logger)
	stuckHandlers := stuckHttp.NewStuckJobsHandler(stuckUC, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg, s.cfg.Server.CorsOrigins, s.logger)
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.Recover())
	e.Use(mw.CORS())
	e.Use(mw.RequestLoggerMiddleware)

	v1 := e.Group("/api/v1")
	videoGroup := v1.Group("/videos")

	videoHttp.MapVideoRoutes(videoGroup, videoHandlers)
	stuckHttp.MapStuckJobsRoutes(v1, stuckHandlers)
	streamHttp.MapStreamRoutes(e, streamHandlers)

	v1.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return nil
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := map[string]string{"status": "OK", "postgres": "OK", "redis": "OK"}
	code := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Errorf("Health - postgres ping error: %v, RequestID: %s", err, utils.GetRequestID(c))
		status["postgres"], status["status"], code = "DOWN", "DEGRADED", http.StatusServiceUnavailable
	}
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		s.logger.Errorf("Health - redis ping error: %v, RequestID: %s", err, utils.GetRequestID(c))
		status["redis"], status["status"], code = "DOWN", "DEGRADED", http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
