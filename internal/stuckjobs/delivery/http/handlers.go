package http

import (
	"net/http"

	"github.com/amankumarsingh77/video-ingest/internal/stuckjobs"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/labstack/echo/v4"
)

type stuckJobsHandler struct {
	uc     stuckjobs.UseCase
	logger logger.Logger
}

func NewStuckJobsHandler(uc stuckjobs.UseCase, log logger.Logger) stuckjobs.Handler {
	return &stuckJobsHandler{uc: uc, logger: log}
}

func (h *stuckJobsHandler) Report() echo.HandlerFunc {
	return func(c echo.Context) error {
		report, err := h.uc.Detect(c.Request().Context())
		if err != nil {
			h.logger.Errorf("Report - Detect error: %v", err)
			return utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to inspect jobs")
		}
		return c.JSON(http.StatusOK, report)
	}
}

func (h *stuckJobsHandler) Fix() echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := h.uc.DetectAndFix(c.Request().Context())
		if err != nil {
			h.logger.Errorf("Fix - DetectAndFix error: %v", err)
			return utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to fix stuck jobs")
		}
		return c.JSON(http.StatusOK, res)
	}
}

func (h *stuckJobsHandler) Stats() echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := h.uc.Stats(c.Request().Context())
		if err != nil {
			h.logger.Errorf("Stats - error: %v", err)
			return utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load stats")
		}
		return c.JSON(http.StatusOK, stats)
	}
}
