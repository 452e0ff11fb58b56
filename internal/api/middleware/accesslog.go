package middleware

import (
	"context"
	"time"

	"prosterio-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// AccessLog 为每个请求分配 request_id 并记录访问日志
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		reqID := string(c.GetHeader(RequestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)
		ctx = logger.WithRequestID(ctx, reqID)

		c.Next(ctx)

		status := c.Response.StatusCode()
		ev := logger.Ctx(ctx).Info()
		if status >= 500 {
			ev = logger.Ctx(ctx).Warn()
		}
		ev.Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
