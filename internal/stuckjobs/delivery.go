package stuckjobs

import "github.com/labstack/echo/v4"

type Handler interface {
	Report() echo.HandlerFunc
	Fix() echo.HandlerFunc
	Stats() echo.HandlerFunc
}
