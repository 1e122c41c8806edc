package http

import (
	"github.com/amankumarsingh77/video-ingest/internal/stuckjobs"
	"github.com/labstack/echo/v4"
)

func MapStuckJobsRoutes(group *echo.Group, h stuckjobs.Handler) {
	group.GET("/stuck", h.Report())
	group.POST("/stuck/fix", h.Fix())
	group.GET("/stats", h.Stats())
}
