package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "J*", MaskPII("Jo"))
	assert.Equal(t, "J**e", MaskPII("Jane"))
	assert.Equal(t, "j@***om", MaskPII("j@x.com"))
	assert.Equal(t, "ja***om", MaskPII("jaxxxom"))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "ja***om", SafeAttributeValue("user.email", "jaxxxom", 100))
	assert.Equal(t, "plain", SafeAttributeValue("employee.count", "plain", 100))
	assert.Equal(t, "ab...yz", SafeAttributeValue("question", "abcdefghijklmnopqrstuvwxyz", 8))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Len(t, []rune(TruncateString("一二三四五六七八九十", 7)), 7)
}

func TestRecordErrorMarksTimeout(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTypeLLM)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	var errType string
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "error.type" {
			errType = attr.Value.AsString()
		}
	}
	assert.Equal(t, string(ErrorTypeTimeout), errType)
}

func TestRecordErrorIgnoresNil(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(nil, errors.New("x"), ErrorTypeDB)
	})
}

func TestInitProviderDisabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), ProviderConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestRecordHTTPError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "GET /api/employees/:id")

	RecordHTTPError(span, errors.New("Employee not found"), 404)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]string{}
	for _, attr := range spans[0].Attributes() {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}
	assert.Equal(t, "404", attrs["http.status_code"])
	assert.Equal(t, "client_error", attrs["error.category"])
	assert.Equal(t, string(ErrorTypeHTTP), attrs["error.type"])
}

func TestSafeLengthCaps(t *testing.T) {
	long := strings.Repeat("x", 1000)
	assert.Len(t, SafeSQL(long), MaxSQLLength)
	assert.Len(t, SafeRedisKey(long), MaxRedisLength)
	assert.Len(t, SafePrompt(long), MaxPromptLength)
	assert.Equal(t, "SELECT 1", SafeSQL("SELECT 1"))
}
