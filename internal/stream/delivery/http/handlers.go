package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/stream"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type streamHandler struct {
	streamUC stream.UseCase
	metrics  *metrics.Metrics
	logger   logger.Logger
}

func NewStreamHandler(streamUC stream.UseCase, m *metrics.Metrics, log logger.Logger) stream.Handler {
	if m == nil {
		m = metrics.NewNop()
	}
	return &streamHandler{
		streamUC: streamUC,
		metrics:  m,
		logger:   log,
	}
}

func (h *streamHandler) Stream() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			return h.notFound(c)
		}
		obj, err := h.streamUC.ResolveStream(c.Request().Context(), id, c.QueryParam("quality"), credentials(c))
		if err != nil {
			return h.resolveError(c, err)
		}
		return h.serve(c, obj)
	}
}

func (h *streamHandler) Thumbnail() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			return h.notFound(c)
		}
		obj, err := h.streamUC.ResolveThumbnail(c.Request().Context(), id, credentials(c))
		if err != nil {
			return h.resolveError(c, err)
		}
		return h.serve(c, obj)
	}
}

func (h *streamHandler) HLS() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("uuid"))
		if err != nil {
			return h.notFound(c)
		}
		obj, err := h.streamUC.ResolveHLS(c.Request().Context(), id, c.Param("*"), credentials(c))
		if err != nil {
			return h.resolveError(c, err)
		}
		return h.serve(c, obj)
	}
}

// serve writes obj honouring the first range of the Range header. The reader is
// opened before any header is committed so a failed open still yields a clean error.
func (h *streamHandler) serve(c echo.Context, obj *stream.Object) error {
	req := c.Request()
	res := c.Response()

	br, err := stream.ParseRange(req.Header.Get("Range"), obj.Size)
	if err != nil {
		setCommonHeaders(res.Header(), obj)
		res.Header().Set("Content-Range", stream.UnsatisfiedRange(obj.Size))
		h.count(http.StatusRequestedRangeNotSatisfiable)
		return c.NoContent(http.StatusRequestedRangeNotSatisfiable)
	}

	status, length := http.StatusOK, obj.Size
	if br != nil {
		status, length = http.StatusPartialContent, br.Length()
	}

	var body io.ReadCloser
	if req.Method != http.MethodHead && length > 0 {
		body, err = h.streamUC.Open(req.Context(), obj, br)
		if err != nil {
			return h.resolveError(c, err)
		}
		defer body.Close()
	}

	setCommonHeaders(res.Header(), obj)
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(length, 10))
	if br != nil {
		res.Header().Set("Content-Range", br.ContentRange(obj.Size))
	}
	res.WriteHeader(status)
	h.count(status)
	if body == nil {
		return nil
	}

	n, err := io.Copy(res, body)
	h.metrics.StreamBytes.Add(float64(n))
	if err != nil {
		// the client usually went away; headers are already out
		h.logger.Debugf("streamHandler.serve - copy %s error after %d bytes: %v", obj.Key, n, err)
	}
	return nil
}

func setCommonHeaders(hdr http.Header, obj *stream.Object) {
	hdr.Set(echo.HeaderContentType, obj.ContentType)
	hdr.Set(echo.HeaderContentEncoding, "identity")
	hdr.Set("Cache-Control", "no-cache, no-store")
	hdr.Set("Accept-Ranges", "bytes")
	hdr.Set("Content-Disposition", "inline")
}

func (h *streamHandler) resolveError(c echo.Context, err error) error {
	if errors.Is(err, videos.ErrNotFound) {
		return h.notFound(c)
	}
	h.logger.Errorf("streamHandler - %s error: %v", c.Path(), err)
	h.count(http.StatusInternalServerError)
	return utils.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}

func (h *streamHandler) notFound(c echo.Context) error {
	h.count(http.StatusNotFound)
	return utils.ErrorResponse(c, http.StatusNotFound, "not found")
}

func (h *streamHandler) count(status int) {
	h.metrics.StreamRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

func credentials(c echo.Context) stream.Credentials {
	return stream.Credentials{
		Expires: c.QueryParam("expires"),
		Sig:     c.QueryParam("sig"),
		Token:   c.QueryParam("token"),
	}
}
