package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one logrus entry per request.  It must run inside
// echo's RequestID middleware to pick up the request id.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			res := c.Response()
			fields := logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
				"request_id": res.Header().Get(echo.HeaderXRequestID),
			}
			if uid, ok := c.Get(ContextUserID).(uint64); ok {
				fields["user_id"] = uid
			}
			entry := log.WithFields(fields)
			switch {
			case res.Status >= 500:
				entry.Error("request failed")
			case res.Status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request handled")
			}
			return nil
		}
	}
}
