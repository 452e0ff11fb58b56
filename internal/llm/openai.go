package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prosterio-go/internal/logger"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIChatModel 通过 OpenAI 兼容接口实现 model.ToolCallingChatModel
type OpenAIChatModel struct {
	client      llms.Model
	modelName   string
	temperature float64
	maxTokens   int
	jsonOutput  bool
	tools       []*schema.ToolInfo
	log         zerolog.Logger
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// OpenAIOptions 连接参数
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	JSONOutput  bool
}

// NewOpenAIChatModel 创建聊天模型
func NewOpenAIChatModel(opts OpenAIOptions) (*OpenAIChatModel, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithModel(opts.Model),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI 客户端失败: %w", err)
	}
	return newOpenAIChatModel(client, opts), nil
}

func newOpenAIChatModel(client llms.Model, opts OpenAIOptions) *OpenAIChatModel {
	return &OpenAIChatModel{
		client:      client,
		modelName:   opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		jsonOutput:  opts.JSONOutput,
		log:         logger.Named("openai"),
	}
}

// Generate 实现 model.BaseChatModel
func (o *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	callOpts := []llms.CallOption{llms.WithTemperature(o.temperature)}
	if options.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*options.Temperature)))
	}
	maxTokens := o.maxTokens
	if options.MaxTokens != nil {
		maxTokens = *options.MaxTokens
	}
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}
	if options.Model != nil && *options.Model != "" {
		callOpts = append(callOpts, llms.WithModel(*options.Model))
	}
	if o.jsonOutput {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := o.client.GenerateContent(ctx, toLangchainMessages(messages), callOpts...)
	if err != nil {
		return nil, fmt.Errorf("openai generate (%s): %w", o.modelName, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai generate: empty choices")
	}
	text := resp.Choices[0].Content
	o.log.Debug().Str("model", o.modelName).Int("reply_len", len(text)).Msg("generate done")
	return schema.AssistantMessage(text, nil), nil
}

// Stream 以单块流返回 Generate 的结果
func (o *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := o.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具描述的副本
func (o *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	cp := *o
	cp.tools = tools
	return &cp, nil
}

func toLangchainMessages(messages []*schema.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case schema.System:
			role = llms.ChatMessageTypeSystem
		case schema.Assistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return out
}

// OpenAIEmbedder 通过 OpenAI 兼容接口实现 embedding.Embedder
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder 创建 embedder
func NewOpenAIEmbedder(apiKey, baseURL, modelName string) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	clientOpts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(modelName),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI 客户端失败: %w", err)
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("创建 embedder 失败: %w", err)
	}
	return &OpenAIEmbedder{embedder: e}, nil
}

// EmbedStrings 实现 embedding.Embedder
func (o *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	vectors, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(vectors), len(texts))
	}
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = toFloat64(v)
	}
	return out, nil
}
