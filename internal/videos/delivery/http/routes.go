package http

import (
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/labstack/echo/v4"
)

func MapVideoRoutes(videoGroup *echo.Group, h videos.Handler) {
	videoGroup.POST("/upload-url", h.UploadURL())
	videoGroup.POST("", h.Register())
	videoGroup.GET("/:uuid", h.GetStatus())
	videoGroup.POST("/:uuid/enqueue", h.Enqueue())
	videoGroup.POST("/:uuid/rebuild", h.Rebuild())
	videoGroup.GET("/:uuid/logs", h.ListLogs())
	videoGroup.GET("/:uuid/playback", h.GetPlayback())
}
