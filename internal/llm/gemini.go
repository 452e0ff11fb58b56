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
	"google.golang.org/genai"
)

// GeminiChatModel 通过 Gemini API 实现 model.ToolCallingChatModel。
// system 消息合并为 SystemInstruction，其余消息按顺序作为对话内容。
type GeminiChatModel struct {
	client      *genai.Client
	modelName   string
	temperature *float32
	jsonOutput  bool
	tools       []*schema.ToolInfo
	log         zerolog.Logger
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)

// NewGeminiClient 创建 Gemini API 客户端
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return client, nil
}

// NewGeminiChatModel 创建聊天模型。jsonOutput 为 true 时要求模型只输出 JSON。
func NewGeminiChatModel(client *genai.Client, modelName string, temperature float32, jsonOutput bool) *GeminiChatModel {
	m := &GeminiChatModel{
		client:     client,
		modelName:  modelName,
		jsonOutput: jsonOutput,
		log:        logger.Named("gemini"),
	}
	if temperature > 0 {
		m.temperature = &temperature
	}
	return m
}

// Generate 实现 model.BaseChatModel
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Temperature: g.temperature}, opts...)

	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return nil, errors.New("gemini: no user content to send")
	}

	cfg := &genai.GenerateContentConfig{Temperature: options.Temperature}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}
	if g.jsonOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	modelName := g.modelName
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate (%s): %w", modelName, err)
	}
	text := resp.Text()
	g.log.Debug().Str("model", modelName).Int("reply_len", len(text)).Msg("generate done")
	return schema.AssistantMessage(text, nil), nil
}

// Stream 以单块流返回 Generate 的结果
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具描述的副本。工具只记录，不参与请求。
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	cp := *g
	cp.tools = tools
	return &cp, nil
}

// toGeminiContents 拆出 system 文本并把其余消息转换为 genai 内容
func toGeminiContents(messages []*schema.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			system = append(system, m.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

// GeminiEmbedder 通过 Gemini API 实现 embedding.Embedder
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	batchSize int
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder 创建 embedder
func NewGeminiEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, modelName: modelName, batchSize: 100}
}

// EmbedStrings 按批调用 EmbedContent，返回顺序与输入一致
func (g *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := embedding.GetCommonOptions(&embedding.Options{}, opts...)
	modelName := g.modelName
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		resp, err := g.client.Models.EmbedContent(ctx, modelName, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini embed (%s): %w", modelName, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embed (%s): got %d vectors for %d texts", modelName, len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, toFloat64(e.Values))
		}
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
