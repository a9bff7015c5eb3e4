package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"namecache/internal/metrics"
)

// Queue 无界的多生产者/单消费者解析队列。
// 排队中或正在解析的 ID 不会被重复加入；批次处理完并调用 Done 后才能再次加入。
type Queue struct {
	mu      sync.Mutex
	items   []uuid.UUID
	pending map[uuid.UUID]struct{}
	ready   chan struct{}
	metrics *metrics.Metrics
}

// NewQueue 创建解析队列
func NewQueue(m *metrics.Metrics) *Queue {
	return &Queue{
		pending: make(map[uuid.UUID]struct{}),
		ready:   make(chan struct{}, 1),
		metrics: m,
	}
}

// Enqueue 加入一个待解析 ID，不阻塞。ID 已在队列中或正在解析时返回 false
func (q *Queue) Enqueue(id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}

	q.mu.Lock()
	if _, ok := q.pending[id]; ok {
		q.mu.Unlock()
		return false
	}
	q.pending[id] = struct{}{}
	q.items = append(q.items, id)
	n := len(q.items)
	q.mu.Unlock()

	q.metrics.QueueDepth(n)
	q.signal()
	return true
}

// Pending ID 是否在队列中或正在解析
func (q *Queue) Pending(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[id]
	return ok
}

// Len 排队中（尚未出队）的 ID 数量
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Done 批次处理结束（无论成功与否），释放其中的 ID
func (q *Queue) Done(ids []uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		delete(q.pending, id)
	}
}

// take 取出最多 max 个 ID，它们保持 pending 直到 Done
func (q *Queue) take(max int) []uuid.UUID {
	q.mu.Lock()
	n := len(q.items)
	if n > max {
		n = max
	}
	out := make([]uuid.UUID, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	left := len(q.items)
	q.mu.Unlock()

	q.metrics.QueueDepth(left)
	if left > 0 {
		q.signal()
	}
	return out
}

// Wait 阻塞直到队列非空或 ctx 结束
func (q *Queue) Wait(ctx context.Context) error {
	for {
		if q.Len() > 0 {
			return nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DequeueBatch 在 window 时间窗口内收集最多 max 个 ID。
// 返回的 ID 处理完后必须交给 Done
func (q *Queue) DequeueBatch(ctx context.Context, window time.Duration, max int) ([]uuid.UUID, error) {
	if max <= 0 {
		max = 1
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	batch := make([]uuid.UUID, 0, max)
	for {
		batch = append(batch, q.take(max-len(batch))...)
		if len(batch) >= max {
			return batch, nil
		}

		select {
		case <-q.ready:
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return batch, ctx.Err()
		}
	}
}
