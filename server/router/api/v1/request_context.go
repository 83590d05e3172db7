package v1

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/pharmacontrol/server/internal/observability"
)

const headerRequestID = "X-Request-ID"

// requestContext attaches a RequestContext to every request and logs the
// outcome.
func (s *APIV1Service) requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			var reqCtx *observability.RequestContext
			if id := req.Header.Get(headerRequestID); id != "" {
				reqCtx = observability.NewRequestContextWithID(slog.Default(), id)
			} else {
				reqCtx = observability.NewRequestContext(slog.Default())
			}
			c.Response().Header().Set(headerRequestID, reqCtx.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))

			err := next(c)

			status := c.Response().Status
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
			}
			switch {
			case err != nil:
				reqCtx.Error("request failed", err, attrs...)
			case status >= 500:
				reqCtx.Warn("request completed with server error", attrs...)
			default:
				reqCtx.Debug("request completed", attrs...)
			}
			return err
		}
	}
}
