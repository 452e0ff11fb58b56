package llm

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse 定义了 MockChatModel 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatModel 是一个用于测试的 model.ToolCallingChatModel。
// 按顺序返回 Responses，用完后返回错误。
type MockChatModel struct {
	mu        sync.Mutex
	Responses []MockResponse
	index     int
	// Reply 非空时优先于 Responses，按输入动态生成回复
	Reply    func(messages []*schema.Message) (string, error)
	Received [][]*schema.Message
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)

// NewMockChatModel 创建按顺序返回 contents 的模型
func NewMockChatModel(contents ...string) *MockChatModel {
	m := &MockChatModel{}
	for _, c := range contents {
		m.Responses = append(m.Responses, MockResponse{Content: c})
	}
	return m
}

// Generate 返回下一条预设回复
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Received = append(m.Received, append([]*schema.Message(nil), input...))

	if m.Reply != nil {
		content, err := m.Reply(input)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(content, nil), nil
	}
	if m.index >= len(m.Responses) {
		return nil, errors.New("mock chat model has run out of responses")
	}
	resp := m.Responses[m.index]
	m.index++
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 以单块流返回 Generate 的结果
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回自身
func (m *MockChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 返回 Generate 被调用的次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Received)
}

// LastUserContent 返回最近一次调用中最后一条 user 消息
func (m *MockChatModel) LastUserContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Received) == 0 {
		return ""
	}
	last := m.Received[len(m.Received)-1]
	for i := len(last) - 1; i >= 0; i-- {
		if last[i].Role == schema.User {
			return last[i].Content
		}
	}
	return ""
}

// FakeEmbedder 是确定性的 embedding.Embedder：每个小写词哈希到一个维度，
// 共享词越多的文本余弦相似度越高。Vectors 中的文本优先使用预设向量。
type FakeEmbedder struct {
	mu      sync.Mutex
	Dim     int
	Vectors map[string][]float64
	Err     error
	// Embedded 记录每次调用的输入
	Embedded [][]string
}

var _ embedding.Embedder = (*FakeEmbedder)(nil)

// NewFakeEmbedder 创建 dim 维的假 embedder
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Dim: dim, Vectors: map[string][]float64{}}
}

// EmbedStrings 实现 embedding.Embedder
func (f *FakeEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Embedded = append(f.Embedded, append([]string(nil), texts...))
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.Vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = f.hashVector(t)
	}
	return out, nil
}

// TextsEmbedded 返回所有调用里被嵌入的文本总数
func (f *FakeEmbedder) TextsEmbedded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, batch := range f.Embedded {
		n += len(batch)
	}
	return n
}

func (f *FakeEmbedder) hashVector(text string) []float64 {
	dim := f.Dim
	if dim <= 0 {
		dim = 64
	}
	v := make([]float64, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?()\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
