package utils

import (
	"context"
	"sync"
)

// WorkerPool 并发任务处理池，限制同时进行的远程调用数量
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	closeOnce  sync.Once
}

// NewWorkerPool 创建新的工作池
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 4 // 默认值
	}

	pool := &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func()),
	}

	// 启动工作协程
	for i := 0; i < maxWorkers; i++ {
		go pool.worker()
	}

	return pool
}

// worker 工作协程
func (p *WorkerPool) worker() {
	for task := range p.taskQueue {
		task()
	}
}

// Submit 提交任务到池；所有工作协程都忙时阻塞，ctx 结束时放弃并返回 false
func (p *WorkerPool) Submit(ctx context.Context, task func()) bool {
	select {
	case p.taskQueue <- task:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close 关闭工作池，不等待进行中的任务
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.taskQueue)
	})
}
