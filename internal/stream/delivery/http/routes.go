package http

import (
	"github.com/amankumarsingh77/video-ingest/internal/stream"
	"github.com/labstack/echo/v4"
)

func MapStreamRoutes(e *echo.Echo, h stream.Handler) {
	e.GET("/stream/:uuid", h.Stream())
	e.HEAD("/stream/:uuid", h.Stream())
	e.GET("/thumb/:uuid", h.Thumbnail())
	e.HEAD("/thumb/:uuid", h.Thumbnail())
	e.GET("/hls/:uuid/*", h.HLS())
	e.HEAD("/hls/:uuid/*", h.HLS())
}
