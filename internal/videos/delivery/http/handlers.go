package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	reasonRetry   = "admin_retry"
	reasonRebuild = "admin_rebuild"
)

type videoHandler struct {
	cfg     *config.Config
	videoUC videos.UseCase
	logger  logger.Logger
	now     func() time.Time
}

func NewVideoHandler(cfg *config.Config, videoUC videos.UseCase, log logger.Logger) videos.Handler {
	return &videoHandler{
		cfg:     cfg,
		videoUC: videoUC,
		logger:  log,
		now:     time.Now,
	}
}

func (h *videoHandler) UploadURL() echo.HandlerFunc {
	return func(c echo.Context) error {
		input := &models.UploadURLInput{}
		if err := c.Bind(input); err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request payload")
		}
		upload, err := h.videoUC.UploadURL(c.Request().Context(), input)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, upload)
	}
}

func (h *videoHandler) Register() echo.HandlerFunc {
	return func(c echo.Context) error {
		input := &models.RegisterVideoInput{}
		if err := c.Bind(input); err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request payload")
		}
		video, err := h.videoUC.Register(c.Request().Context(), input)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusCreated, video)
	}
}

func (h *videoHandler) GetStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid video id")
		}
		status, err := h.videoUC.GetStatus(c.Request().Context(), videoID)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, status)
	}
}

func (h *videoHandler) Enqueue() echo.HandlerFunc {
	return func(c echo.Context) error {
		input := &models.EnqueueInput{}
		if c.Request().ContentLength != 0 {
			if err := c.Bind(input); err != nil {
				return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request payload")
			}
		}
		if err := utils.ValidateStruct(c.Request().Context(), input); err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		reason := input.Reason
		if reason == "" {
			reason = reasonRetry
		}
		return h.enqueue(c, reason)
	}
}

// Rebuild re-queues a ready video, discarding its renditions.
func (h *videoHandler) Rebuild() echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.enqueue(c, reasonRebuild)
	}
}

func (h *videoHandler) enqueue(c echo.Context, reason string) error {
	videoID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid video id")
	}
	ctx := c.Request().Context()
	video, err := h.videoUC.GetByUUID(ctx, videoID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	result, err := h.videoUC.Enqueue(ctx, video.ID, reason)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, result)
}

func (h *videoHandler) ListLogs() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid video id")
		}
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		logs, err := h.videoUC.ListLogs(c.Request().Context(), videoID, pagination)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, logs)
	}
}

func (h *videoHandler) GetPlayback() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid video id")
		}
		video, err := h.videoUC.GetByUUID(c.Request().Context(), videoID)
		if err != nil {
			return h.errorResponse(c, err)
		}
		if !video.StreamReady() {
			return h.errorResponse(c, videos.ErrNotReady)
		}
		return c.JSON(http.StatusOK, h.playbackInfo(video))
	}
}

func (h *videoHandler) playbackInfo(video *models.Video) *models.PlaybackInfo {
	expires := h.now().Add(h.cfg.Processing.SignedURLTTL).Truncate(time.Second)
	id := video.UUID.String()

	info := &models.PlaybackInfo{
		VideoID:   id,
		Duration:  video.DurationSeconds,
		StreamURL: h.signedURL("/stream/"+id, id, "", expires),
		Qualities: make(map[string]models.QualityInfo, len(video.Renditions)),
		ExpiresAt: expires.UTC(),
		Status:    video.ProcessingState,
	}
	if video.ThumbnailReady() {
		info.Thumbnail = h.signedURL("/thumb/"+id, id, "", expires)
	}
	if video.HLSReady() {
		info.HLSURL = h.signedURL("/hls/"+id+"/master.m3u8", id, "", expires)
	}
	for _, q := range video.Renditions.Sorted() {
		r := video.Renditions[q]
		info.Qualities[q.Label()] = models.QualityInfo{
			URL:        h.signedURL("/stream/"+id, id, q.Label(), expires),
			Resolution: strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height),
			Bitrate:    r.BitrateKbps,
			Filesize:   r.Filesize,
		}
	}
	return info
}

func (h *videoHandler) signedURL(path, videoID, quality string, expires time.Time) string {
	q := url.Values{}
	if quality != "" {
		q.Set("quality", quality)
	}
	if key := h.cfg.Server.SigningKey; key != "" {
		exp := expires.Unix()
		q.Set("expires", strconv.FormatInt(exp, 10))
		q.Set("sig", utils.SignStream(videoID, exp, key))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (h *videoHandler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, videos.ErrNotFound):
		return utils.ErrorResponse(c, http.StatusNotFound, videos.ErrNotFound.Error())
	case errors.Is(err, videos.ErrAlreadyInProgress):
		return utils.ErrorResponse(c, http.StatusConflict, videos.ErrAlreadyInProgress.Error())
	case errors.Is(err, videos.ErrNotReady):
		return utils.ErrorResponse(c, http.StatusConflict, videos.ErrNotReady.Error())
	case errors.Is(err, videos.ErrInvalidInput):
		return utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, videos.ErrUploadUnsupported):
		return utils.ErrorResponse(c, http.StatusNotImplemented, videos.ErrUploadUnsupported.Error())
	}
	h.logger.Errorf("videoHandler - %s %s error: %v", c.Request().Method, c.Path(), err)
	return utils.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}
