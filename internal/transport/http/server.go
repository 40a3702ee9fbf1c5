// Package http provides the HTTP server for the content pipeline.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/contentflow/internal/notify"
	"github.com/xiaot623/gogo/contentflow/internal/service"
	v1 "github.com/xiaot623/gogo/contentflow/internal/transport/http/v1"
)

// NewServer creates the HTTP server. When hub is non-nil, run progress is
// streamed over websocket at /v1/stream.
func NewServer(svc *service.Service, hub *notify.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	if hub != nil {
		e.GET("/v1/stream", echo.WrapHandler(hub))
	}

	return e
}
