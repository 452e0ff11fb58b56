package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"prosterio-go/internal/auth"
	"prosterio-go/internal/gdrive"
	"prosterio-go/internal/llm"
	"prosterio-go/internal/logger"
	"prosterio-go/internal/processor"
	"prosterio-go/internal/retrieval"
	"prosterio-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"
)

var errInvalidBody = errors.New("Invalid JSON body")

// statusOf 把服务层错误映射为 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return consts.StatusUnauthorized
	case errors.Is(err, llm.ErrNotConfigured),
		errors.Is(err, retrieval.ErrNotConfigured),
		errors.Is(err, gdrive.ErrNotConfigured):
		return consts.StatusInternalServerError
	case errors.Is(err, processor.ErrValidation),
		errors.Is(err, retrieval.ErrEmptyQuestion),
		errors.Is(err, errInvalidBody):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, processor.ErrConflict):
		return consts.StatusConflict
	case errors.Is(err, processor.ErrUpstream), errors.Is(err, retrieval.ErrRetrievalFailed):
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

// writeError 输出 {"error": msg}，并把错误记录到请求的 span 上
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	writeErrorStatus(ctx, c, statusOf(err), err)
}

func writeErrorStatus(ctx context.Context, c *app.RequestContext, status int, err error) {
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	if status >= consts.StatusInternalServerError {
		logger.Error().Err(err).Str("path", string(c.Path())).Int("status", status).Msg("请求处理失败")
	}
	c.JSON(status, utils.H{"error": processor.Message(err)})
}

// decodeJSON 解析请求体；空请求体按 {} 处理
func decodeJSON(c *app.RequestContext, dst any) error {
	body := c.Request.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errInvalidBody
	}
	return nil
}

// identity 返回认证中间件写入的调用方；缺失时已写出 401
func identity(c *app.RequestContext) (auth.Identity, bool) {
	id, ok := auth.FromContext(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": auth.ErrMissingAuthHeader.Error()})
		return auth.Identity{}, false
	}
	return id, true
}

// pathID 解析路径中的数字 id，非法时按 notFound 写出 404
func pathID(c *app.RequestContext, name, notFound string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(consts.StatusNotFound, utils.H{"error": notFound})
		return 0, false
	}
	return id, true
}
