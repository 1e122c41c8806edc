package videos

import "github.com/labstack/echo/v4"

type Handler interface {
	UploadURL() echo.HandlerFunc
	Register() echo.HandlerFunc
	GetStatus() echo.HandlerFunc
	Enqueue() echo.HandlerFunc
	Rebuild() echo.HandlerFunc
	ListLogs() echo.HandlerFunc
	GetPlayback() echo.HandlerFunc
}
