// Package http provides the HTTP servers of the TradieHelper backend.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/service"
	"github.com/xiaot623/tradiehelper/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/tradiehelper/internal/transport/http/v1"
)

// NewExternalServer creates the client-facing server: the REST API under
// /v1, /health, /metrics and, when wsHandler is not nil, the websocket
// endpoint at /ws.
func NewExternalServer(svc *service.Service, verifier *auth.Verifier, m *metrics.Metrics, wsHandler http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "tradiehelper.external")
	}))

	v1Handler := v1.NewHandler(svc, verifier)
	v1Handler.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	if wsHandler != nil {
		e.GET("/ws", echo.WrapHandler(wsHandler))
	}

	return e
}

// NewInternalServer creates the server for trusted writers. A non-empty
// apiKey must be presented in the X-API-Key header.
func NewInternalServer(svc *service.Service, apiKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	internalHandler := internalapi.NewHandler(svc, apiKey)
	internalHandler.RegisterRoutes(e)

	return e
}
