package service

import (
	"context"
	"sync"
	"time"
)

// Listener 变更通知回调
type Listener[K comparable, V any] func(changes map[K]V)

// Notifier 变更通知的观察者列表。
// 订阅、退订与通知可以并发调用；每个订阅者都会收到每一次通知。
type Notifier[K comparable, V any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener[K, V]
}

// NewNotifier 创建通知器
func NewNotifier[K comparable, V any]() *Notifier[K, V] {
	return &Notifier[K, V]{listeners: make(map[uint64]Listener[K, V])}
}

// Subscribe 订阅通知，返回退订函数（可重复调用）
func (n *Notifier[K, V]) Subscribe(l Listener[K, V]) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Len 当前订阅者数量
func (n *Notifier[K, V]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Notify 向所有订阅者广播；回调在锁外执行
func (n *Notifier[K, V]) Notify(changes map[K]V) {
	if len(changes) == 0 {
		return
	}

	n.mu.RLock()
	listeners := make([]Listener[K, V], 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.RUnlock()

	for _, l := range listeners {
		l(changes)
	}
}

// WaitFor 先订阅再调用 request，然后等待 key 的通知、超时或 ctx 结束。
// 返回值 ok 表示收到了通知；退出时总是退订。
func (n *Notifier[K, V]) WaitFor(ctx context.Context, key K, timeout time.Duration, request func()) (value V, ok bool, err error) {
	ch := make(chan V, 1)
	unsubscribe := n.Subscribe(func(changes map[K]V) {
		if v, found := changes[key]; found {
			select {
			case ch <- v:
			default:
			}
		}
	})
	defer unsubscribe()

	if request != nil {
		request()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, true, nil
	case <-timer.C:
		return value, false, nil
	case <-ctx.Done():
		return value, false, ctx.Err()
	}
}
