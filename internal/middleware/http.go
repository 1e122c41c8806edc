package middleware

import (
	"net/http"
	"time"

	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// RequestLoggerMiddleware logs one line per request, at warn for 4xx and error for 5xx.
func (mw *MiddlewareManager) RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		status := res.Status
		line := "%s %s status=%d size=%d duration=%s remote=%s request_id=%s"
		args := []interface{}{
			req.Method, req.URL.Path, status, res.Size, time.Since(start),
			utils.GetIPAddress(c), utils.GetRequestID(c),
		}
		switch {
		case status >= http.StatusInternalServerError:
			mw.logger.Errorf(line, args...)
		case status >= http.StatusBadRequest:
			mw.logger.Warnf(line, args...)
		default:
			mw.logger.Infof(line, args...)
		}
		return nil
	}
}

// CORS lets browsers issue range requests and read the partial content headers.
func (mw *MiddlewareManager) CORS() echo.MiddlewareFunc {
	return echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: mw.origins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "Range", echo.HeaderXRequestID},
		ExposeHeaders: []string{
			"Content-Range", "Accept-Ranges", echo.HeaderContentLength, echo.HeaderXRequestID,
		},
		MaxAge: 300,
	})
}
