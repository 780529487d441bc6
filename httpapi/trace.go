package httpapi

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/internal/logging"
)

const traceKey = "trace_id"

// Trace assigns every request a trace id, taken from X-Request-ID when the
// client sent a plausible one. The id is echoed in the response header and
// attached to the request context for the engine and the logger.
func Trace(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if !validTraceID(id) {
				id = strings.ReplaceAll(uuid.NewString(), "-", "")
			}
			c.Set(traceKey, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			ctx := c.Request().Context()
			ctx = boardauth.WithRequestID(ctx, id)
			ctx = boardauth.WithClientIP(ctx, c.RealIP())
			ctx = logging.IntoContext(ctx, base.With(traceKey, id))
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func traceID(c echo.Context) string {
	id, _ := c.Get(traceKey).(string)
	return id
}

func validTraceID(id string) bool {
	if len(id) < 16 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// HeaderProcessTime carries the handler time in seconds, four decimals.
const HeaderProcessTime = "X-Process-Time"

// AccessLog writes one record per request with the final status and sets
// X-Process-Time just before the headers go out. Errors are rendered here
// so the logged status matches the response.
func AccessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			res := c.Response()
			res.Before(func() {
				res.Header().Set(HeaderProcessTime, strconv.FormatFloat(time.Since(start).Seconds(), 'f', 4, 64))
			})

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			l := logging.FromContext(req.Context())
			attrs := []any{
				"client", c.RealIP(),
				"method", req.Method,
				"path", req.URL.Path,
				"proto", req.Proto,
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
			}

			switch {
			case status >= 500:
				l.Error("access", attrs...)
			case status >= 400:
				l.Warn("access", attrs...)
			default:
				l.Info("access", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}
