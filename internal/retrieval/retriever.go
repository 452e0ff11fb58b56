package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"prosterio-go/internal/logger"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"
	"prosterio-go/internal/tracing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("retrieval")

var (
	// ErrEmptyQuestion 问题为空
	ErrEmptyQuestion = errors.New("Prompt is required")
	// ErrRetrievalFailed embedding 或回答生成失败，不返回部分结果
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrNotConfigured 未配置模型或 embedder
	ErrNotConfigured = errors.New("retrieval models are not configured")
)

const (
	defaultCompletionTimeout = 60 * time.Second
	defaultEmbeddingTimeout  = 30 * time.Second
	embedBatchSize           = 64
)

// DefaultPromptTemplate 回答提示模板，{context} 与 {question} 会被替换
const DefaultPromptTemplate = `Here is our analysis of our employees. Recommend employees by name in your analysis and select only the employees who can help with our question. Explain the project and the reason for each recommendation.
###
CONTEXT: {context}
###
QUESTION: {question}
ANSWER: `

// Answer 一次检索回答的结果
type Answer struct {
	Question   string
	Text       string
	Context    string
	Selected   []Candidate
	Evaluation Evaluation
}

// Retriever 嵌入分块、挑选上下文并调用补全模型
type Retriever struct {
	chunks            storage.ChunkRepository
	chat              model.ToolCallingChatModel
	embedder          embedding.Embedder
	embeddingModel    string
	policy            SelectionPolicy
	topK              int
	prompt            string
	completionTimeout time.Duration
	embeddingTimeout  time.Duration
	evaluator         *Evaluator
	log               zerolog.Logger
}

// Option 配置 Retriever
type Option func(*Retriever)

// WithPolicy 设置分块挑选策略与截断数量
func WithPolicy(p SelectionPolicy, topK int) Option {
	return func(r *Retriever) {
		if p != "" {
			r.policy = p
		}
		r.topK = topK
	}
}

// WithPromptTemplate 替换回答提示模板，空串保持默认
func WithPromptTemplate(tpl string) Option {
	return func(r *Retriever) {
		if strings.TrimSpace(tpl) != "" {
			r.prompt = tpl
		}
	}
}

// WithTimeouts 设置补全与 embedding 调用超时
func WithTimeouts(completion, embed time.Duration) Option {
	return func(r *Retriever) {
		if completion > 0 {
			r.completionTimeout = completion
		}
		if embed > 0 {
			r.embeddingTimeout = embed
		}
	}
}

// WithEvaluator 回答后进行质量评估
func WithEvaluator(e *Evaluator) Option {
	return func(r *Retriever) {
		r.evaluator = e
	}
}

// NewRetriever 创建检索器。embeddingModel 用于判断已存储的向量是否可复用。
func NewRetriever(chunks storage.ChunkRepository, chat model.ToolCallingChatModel, embedder embedding.Embedder, embeddingModel string, opts ...Option) *Retriever {
	r := &Retriever{
		chunks:            chunks,
		chat:              chat,
		embedder:          embedder,
		embeddingModel:    embeddingModel,
		policy:            FirstPerEmployee,
		prompt:            DefaultPromptTemplate,
		completionTimeout: defaultCompletionTimeout,
		embeddingTimeout:  defaultEmbeddingTimeout,
		log:               logger.Named("retrieval"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Answer 回答 scopeUserID 可见分块范围内的问题
func (r *Retriever) Answer(ctx context.Context, scopeUserID uint64, question string) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Answer")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if r.chat == nil || r.embedder == nil {
		return nil, ErrNotConfigured
	}
	span.SetAttributes(attribute.String("retrieval.question", tracing.SafePrompt(question)))

	rows, err := r.chunks.ListChunks(ctx, scopeUserID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("%w: load chunks: %w", ErrRetrievalFailed, err)
	}
	span.SetAttributes(attribute.Int("retrieval.chunks", len(rows)))

	vectors, err := r.chunkVectors(ctx, rows)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}
	qv, err := r.embed(ctx, []string{question})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("%w: embed question: %w", ErrRetrievalFailed, err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for i, row := range rows {
		candidates = append(candidates, Candidate{
			ChunkID:    row.ID,
			EmployeeID: row.EmployeeID,
			Type:       row.Type,
			Text:       row.ChunkText,
			Score:      CosineSimilarity(qv[0], vectors[i]),
		})
	}
	selected := Select(candidates, r.policy, r.topK)
	contextText := JoinContext(selected)
	span.SetAttributes(attribute.Int("retrieval.selected", len(selected)))

	text, err := r.complete(ctx, contextText, question)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("%w: completion: %w", ErrRetrievalFailed, err)
	}

	out := &Answer{Question: question, Text: text, Context: contextText, Selected: selected}
	if r.evaluator != nil {
		out.Evaluation = r.evaluator.Evaluate(ctx, scopeUserID, question, contextText, text)
	}
	r.log.Info().Int("chunks", len(rows)).Int("selected", len(selected)).Msg("检索回答完成")
	return out, nil
}

// chunkVectors 返回与 rows 一一对应的向量。缺失或模型不符的向量重新计算并尽力回填。
func (r *Retriever) chunkVectors(ctx context.Context, rows []models.ContentChunk) ([][]float64, error) {
	vectors := make([][]float64, len(rows))
	var missing []int
	for i, row := range rows {
		if row.EmbeddingModel == r.embeddingModel && len(row.Embedding) > 0 {
			var v []float64
			if err := json.Unmarshal(row.Embedding, &v); err == nil && len(v) > 0 {
				vectors[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	fresh := make(map[uint64][]float64, len(missing))
	for start := 0; start < len(missing); start += embedBatchSize {
		end := min(start+embedBatchSize, len(missing))
		texts := make([]string, 0, end-start)
		for _, idx := range missing[start:end] {
			texts = append(texts, rows[idx].ChunkText)
		}
		got, err := r.embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embed chunks: %w", ErrRetrievalFailed, err)
		}
		for j, idx := range missing[start:end] {
			vectors[idx] = got[j]
			fresh[rows[idx].ID] = got[j]
		}
	}

	if err := r.chunks.SaveEmbeddings(ctx, r.embeddingModel, fresh); err != nil {
		r.log.Warn().Err(err).Int("count", len(fresh)).Msg("回填分块 embedding 失败")
	} else {
		r.log.Debug().Int("count", len(fresh)).Msg("已回填分块 embedding")
	}
	return vectors, nil
}

func (r *Retriever) embed(ctx context.Context, texts []string) ([][]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.embeddingTimeout)
	defer cancel()
	out, err := r.embedder.EmbedStrings(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
	}
	return out, nil
}

func (r *Retriever) complete(ctx context.Context, contextText, question string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.completionTimeout)
	defer cancel()

	prompt := strings.NewReplacer("{context}", contextText, "{question}", question).Replace(r.prompt)
	reply, err := r.chat.Generate(callCtx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
