package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket 实现令牌桶算法的限流器。nil 的 *TokenBucket 表示不限速。
type TokenBucket struct {
	rate           float64    // 每秒生成的令牌数
	capacity       float64    // 桶的容量
	tokens         float64    // 当前令牌数
	lastRefillTime time.Time  // 上次填充令牌的时间
	mutex          sync.Mutex // 互斥锁，保证并发安全
}

// NewTokenBucket 创建一个新的令牌桶限流器。qpm <= 0 时返回 nil (不限速)。
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if qpm <= 0 {
		return nil
	}
	// 如果未指定容量，设置为QPM的一半
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}

	return &TokenBucket{
		rate:           float64(qpm) / 60.0,
		capacity:       float64(capacity),
		tokens:         float64(capacity), // 初始填满
		lastRefillTime: time.Now(),
	}
}

// refill 根据经过的时间填充令牌
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Allow 判断是否允许通过一个请求，消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	if tb == nil {
		return true
	}
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Wait 等待直到有令牌可用，或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if tb == nil {
		return ctx.Err()
	}
	for {
		tb.mutex.Lock()
		tb.refill()

		if tb.tokens >= 1.0 {
			tb.tokens -= 1.0
			tb.mutex.Unlock()
			return nil
		}

		waitTime := time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mutex.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Registry 按模型名共享令牌桶，同一模型的所有调用方受同一个 QPM 约束
type Registry struct {
	mu      sync.Mutex
	limits  map[string]int
	buckets map[string]*TokenBucket
}

// NewRegistry 以模型名 -> QPM 的映射创建 Registry
func NewRegistry(limits map[string]int) *Registry {
	return &Registry{
		limits:  limits,
		buckets: make(map[string]*TokenBucket),
	}
}

// For 返回模型对应的令牌桶。未配置限额的模型返回 nil。
func (r *Registry) For(model string) *TokenBucket {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buckets[model]; ok {
		return b
	}
	b := NewTokenBucket(r.limits[model], 0)
	r.buckets[model] = b
	return b
}
