package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"prosterio-go/internal/logger"
	"prosterio-go/internal/tracing"
	"prosterio-go/internal/types"
	"prosterio-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("extractor")

const defaultExtractionTimeout = 60 * time.Second

// DefaultPromptTemplate 系统提示词，简历文本作为 user 消息单独发送
const DefaultPromptTemplate = `You extract structured data from CV text.

Return a single JSON object with exactly these keys:
- full_name (string)
- email (string)
- job_title (string, the current or most recent title)
- promotion_years (integer)
- profile (string)
- skills (list of strings)
- professional_experiences (list of {company, job_title, location, date_start, date_end, description})
- educations (list of {institution, title, date_start, date_end, score, description})
- publications (list of {title, publication, date})
- distinctions (list of {name, description})
- certifications (list of strings)

Rules:
- Only use information literally present in the CV text. Never infer or invent values.
- A missing scalar is null, a missing list is []. Never omit a key.
- Experience dates use "MMM YYYY" (for example "Jan 2021"). Education dates use "YYYY".
- Use the literal "Current" as date_end for an ongoing position or study.
- description fields are lists of strings, one entry per line or bullet.

Return only valid JSON with no explanation or markdown.`

// ResumeExtractor 把简历文件转换为 EmployeeRecord
type ResumeExtractor struct {
	model   model.ToolCallingChatModel
	texts   TextExtractors
	prompt  string
	timeout time.Duration
	log     zerolog.Logger
}

// Option 是 ResumeExtractor 的配置选项
type Option func(*ResumeExtractor)

// WithPromptTemplate 替换系统提示词，空串保持默认
func WithPromptTemplate(prompt string) Option {
	return func(r *ResumeExtractor) {
		if strings.TrimSpace(prompt) != "" {
			r.prompt = prompt
		}
	}
}

// WithTimeout 单次模型调用超时
func WithTimeout(d time.Duration) Option {
	return func(r *ResumeExtractor) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLimiter 模型调用前等待令牌
func WithLimiter(bucket *ratelimit.TokenBucket) Option {
	return func(r *ResumeExtractor) {
		r.model = ratelimit.WrapChatModel(r.model, bucket)
	}
}

// WithLogger 自定义日志
func WithLogger(l zerolog.Logger) Option {
	return func(r *ResumeExtractor) {
		r.log = l
	}
}

// NewResumeExtractor 创建抽取器。m 为 nil 时每次抽取都返回 ErrModelUnavailable。
func NewResumeExtractor(m model.ToolCallingChatModel, texts TextExtractors, opts ...Option) *ResumeExtractor {
	r := &ResumeExtractor{
		model:   m,
		texts:   texts,
		prompt:  DefaultPromptTemplate,
		timeout: defaultExtractionTimeout,
		log:     logger.Named("extractor"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supports 判断文件名是否可以被处理
func (r *ResumeExtractor) Supports(name string) bool {
	return r.texts.Supports(name)
}

// Extract 提取文件文本并交给模型结构化
func (r *ResumeExtractor) Extract(ctx context.Context, name string, data []byte) (*types.EmployeeRecord, error) {
	te, err := r.texts.ForFile(name)
	if err != nil {
		return nil, err
	}
	text, err := te.ExtractText(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return r.FromText(ctx, text)
}

// FromText 让模型把简历文本转换为 EmployeeRecord，结果已 Normalize 但不做必填校验
func (r *ResumeExtractor) FromText(ctx context.Context, text string) (*types.EmployeeRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoTextExtracted
	}
	if r.model == nil {
		return nil, fmt.Errorf("%w: no model configured", ErrModelUnavailable)
	}

	ctx, span := tracer.Start(ctx, "ResumeExtractor.FromText")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.system_prompt", tracing.SafePrompt(r.prompt)),
		attribute.Int("extractor.text_length", len(text)),
	)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := r.model.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(r.prompt),
		schema.UserMessage("Here is the CV text:\n\"\"\"\n" + text + "\n\"\"\""),
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrModelUnavailable, r.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	r.log.Debug().Int("text_len", len(text)).Dur("took", time.Since(start)).Msg("模型抽取完成")

	rec, err := parseRecord(reply.Content)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
	}
	return rec, err
}

func parseRecord(reply string) (*types.EmployeeRecord, error) {
	raw := ExtractJSON(reply)
	if raw == "" {
		return nil, ErrModelResponseNotJSON
	}
	var record types.EmployeeRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponseNotJSON, err)
	}
	record.ID = 0
	record.UserID = 0
	record.FileData = nil
	record.Normalize()
	return &record, nil
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON 先找 ```json 代码块，再从第一个 { 开始做括号匹配。字符串内的括号不计数。
func ExtractJSON(text string) string {
	if m := fencedJSONPattern.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
