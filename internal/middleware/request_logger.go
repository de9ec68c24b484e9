package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const ctxLoggerKey = "logger"

// RequestLogger はリクエストごとにmethod/path/status/latencyを残す。
// ハンドラからはLoggerFromで同じloggerを使う。
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqLog := log.With(
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
			)
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				reqLog = reqLog.With(zap.String("request_id", id))
			}
			c.Set(ctxLoggerKey, reqLog)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
			}
			switch {
			case status >= 500:
				reqLog.Error("request", fields...)
			case status >= 400:
				reqLog.Warn("request", fields...)
			default:
				reqLog.Info("request", fields...)
			}
			return nil
		}
	}
}

func LoggerFrom(c echo.Context) *zap.Logger {
	if l, ok := c.Get(ctxLoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
