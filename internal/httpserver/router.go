package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// WSHandler is the interview signaling endpoint; satisfied by rtc.Handler.
type WSHandler interface {
	ServeWebSocket(w http.ResponseWriter, r *http.Request)
}

// New creates the configured Echo server with the health and interview
// signaling routes.
func New(ws WSHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/ws", func(c echo.Context) error {
		ws.ServeWebSocket(c.Response(), c.Request())
		return nil
	})
	return e
}
