package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类，用于过滤与告警
type ErrorType string

const (
	ErrorTypeHTTP          ErrorType = "http"
	ErrorTypeDB            ErrorType = "db"
	ErrorTypeRedis         ErrorType = "redis"
	ErrorTypeRabbitMQ      ErrorType = "rabbitmq"
	ErrorTypeObjectStorage ErrorType = "object_storage"
	ErrorTypeLLM           ErrorType = "llm"
	ErrorTypeEmbedding     ErrorType = "embedding"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeExternal      ErrorType = "external_system"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeInternal      ErrorType = "internal"
)

// RecordError 记录错误，添加统一的错误类型和详情。
// 超时错误无论传入何种类型都记为 ErrorTypeTimeout。
func RecordError(span trace.Span, err error, errorType ErrorType, attributes ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		errorType = ErrorTypeTimeout
	}

	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 专门记录HTTP错误
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}

	var errorCategory string
	switch {
	case statusCode >= 400 && statusCode < 500:
		errorCategory = "client_error"
	case statusCode >= 500:
		errorCategory = "server_error"
	default:
		errorCategory = "unknown"
	}

	RecordError(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", errorCategory),
	)
}

// RecordPublishFailure 记录消息发布失败
func RecordPublishFailure(span trace.Span, err error, messageID string, retryCount int) {
	RecordError(span, err, ErrorTypeRabbitMQ,
		attribute.String("messaging.message_id", messageID),
		attribute.Int("messaging.retry_count", retryCount),
	)
}
