package stream

import "github.com/labstack/echo/v4"

type Handler interface {
	Stream() echo.HandlerFunc
	Thumbnail() echo.HandlerFunc
	HLS() echo.HandlerFunc
}
