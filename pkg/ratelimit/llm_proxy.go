package ratelimit

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedChatModel 在调用前等待令牌的模型代理。不做重试，失败直接返回给调用方。
type RateLimitedChatModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
}

// WrapChatModel 为模型加上限流。bucket 为 nil 时原样返回。
func WrapChatModel(original model.ToolCallingChatModel, bucket *TokenBucket) model.ToolCallingChatModel {
	if bucket == nil || original == nil {
		return original
	}
	return &RateLimitedChatModel{original: original, rateLimiter: bucket}
}

// Generate 代理Generate方法
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Generate(ctx, messages, options...)
}

// Stream 代理Stream方法
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Stream(ctx, messages, options...)
}

// WithTools 代理WithTools方法，新模型共享同一个令牌桶
func (rl *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedChatModel{original: newModel, rateLimiter: rl.rateLimiter}, nil
}

// RateLimitedEmbedder 在调用前等待令牌的 embedder 代理
type RateLimitedEmbedder struct {
	original    embedding.Embedder
	rateLimiter *TokenBucket
}

// WrapEmbedder 为 embedder 加上限流。bucket 为 nil 时原样返回。
func WrapEmbedder(original embedding.Embedder, bucket *TokenBucket) embedding.Embedder {
	if bucket == nil || original == nil {
		return original
	}
	return &RateLimitedEmbedder{original: original, rateLimiter: bucket}
}

// EmbedStrings 代理EmbedStrings方法
func (rl *RateLimitedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.EmbedStrings(ctx, texts, opts...)
}
