package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket 令牌桶限流器，等待队列深度为 1（先到先得）
type TokenBucket struct {
	limiter  *rate.Limiter
	capacity int
	mu       sync.Mutex
	waiting  bool // 队列中是否已有等待者
}

// NewTokenBucket 创建令牌桶：容量 capacity，每 period 补充 refill 个令牌
func NewTokenBucket(capacity, refill int, period time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refill <= 0 {
		refill = 1
	}
	if period <= 0 {
		period = time.Second
	}

	every := period / time.Duration(refill)
	return &TokenBucket{
		limiter:  rate.NewLimiter(rate.Every(every), capacity),
		capacity: capacity,
	}
}

// Acquire 获取 n 个令牌。令牌不足时排队等待；队列已满、n 超过容量或 ctx 结束时返回 false
func (b *TokenBucket) Acquire(ctx context.Context, n int) bool {
	if n > b.capacity {
		return false
	}
	if b.limiter.AllowN(time.Now(), n) {
		return true
	}

	b.mu.Lock()
	if b.waiting {
		b.mu.Unlock()
		return false
	}
	b.waiting = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.waiting = false
		b.mu.Unlock()
	}()

	return b.limiter.WaitN(ctx, n) == nil
}

// TryAcquire 不等待，立即判断是否有 n 个令牌
func (b *TokenBucket) TryAcquire(n int) bool {
	return b.limiter.AllowN(time.Now(), n)
}

// Available 当前可用令牌数（近似值）
func (b *TokenBucket) Available() float64 {
	return b.limiter.Tokens()
}
