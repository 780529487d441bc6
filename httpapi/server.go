// Package httpapi is the echo HTTP surface of the board auth service.
//
// Routes:
//
//	POST /v1/auth/login          JSON {email,password} or form username/password
//	POST /v1/auth/login/form     form username/password
//	POST /v1/auth/refresh        {refresh_token}
//	POST /v1/auth/logout         {refresh_token}, 204
//	POST /v1/auth/register       alias of POST /v1/users
//	POST /v1/users               register, 201
//	GET  /v1/users/me            bearer
//	GET  /v1/admin/users/:id     bearer, admin
//	GET  /v1/posts/:id/views     one view recorded, count returned
//	GET  /metrics                Prometheus text, when configured
//	GET  /healthz
//
// Errors are rendered as {code, message, details, trace_id}. Every response
// carries X-Request-ID and X-Process-Time.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/middleware"
	"github.com/MrEthical07/boardauth/viewcount"
)

// Auth is the engine surface the handlers call. *boardauth.Engine
// implements it.
type Auth interface {
	middleware.Authenticator
	Login(ctx context.Context, email, password string) (*boardauth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*boardauth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Register(ctx context.Context, in boardauth.RegisterInput) (*boardauth.User, error)
	UserByID(ctx context.Context, id int64) (*boardauth.User, error)
}

type Deps struct {
	Auth  Auth
	Views viewcount.Reader
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Ready backs GET /healthz; nil means always healthy.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
	// RequestTimeout bounds every handler's context. Zero means 10s.
	RequestTimeout time.Duration
}

// New builds the echo instance with middleware, error handler and routes.
func New(d Deps) *echo.Echo {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(echomw.Recover())
	e.Use(Trace(logger))
	e.Use(AccessLog())
	e.Use(contextTimeout(timeout))

	h := &handlers{auth: d.Auth, views: d.Views, ready: d.Ready}

	e.GET("/healthz", h.health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	authGroup := e.Group("/v1/auth")
	authGroup.POST("/login", h.login)
	authGroup.POST("/login/form", h.login)
	authGroup.POST("/refresh", h.refresh)
	authGroup.POST("/logout", h.logout)
	authGroup.POST("/register", h.register)

	authenticated := middleware.Authenticate(d.Auth)
	adminOnly := middleware.RequireRole(d.Auth, boardauth.RoleAdmin)

	e.POST("/v1/users", h.register)
	e.GET("/v1/users/me", h.me, authenticated)
	e.GET("/v1/admin/users/:id", h.adminUser, authenticated, adminOnly)

	if d.Views != nil {
		e.GET("/v1/posts/:id/views", h.postViews, middleware.OptionalAuthenticate(d.Auth))
	}

	return e
}

func contextTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
