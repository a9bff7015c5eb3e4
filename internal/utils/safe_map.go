package utils

import (
	"sync"

	"github.com/google/uuid"
)

const shardCount = 32

// SafeMap 并发安全的分片 map（按 UUID 首字节分片，写入只锁单个分片）
type SafeMap[V any] struct {
	shards [shardCount]*mapShard[V]
}

type mapShard[V any] struct {
	data  map[uuid.UUID]V
	mutex sync.RWMutex
}

// NewSafeMap 创建并发安全的 map
func NewSafeMap[V any]() *SafeMap[V] {
	sm := &SafeMap[V]{}
	for i := range sm.shards {
		sm.shards[i] = &mapShard[V]{data: make(map[uuid.UUID]V)}
	}
	return sm
}

func (sm *SafeMap[V]) shard(key uuid.UUID) *mapShard[V] {
	return sm.shards[int(key[0])%shardCount]
}

// Get 获取值
func (sm *SafeMap[V]) Get(key uuid.UUID) (V, bool) {
	s := sm.shard(key)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	v, ok := s.data[key]
	return v, ok
}

// Update 在分片写锁内读取旧值并写入 fn 返回的新值；fn 返回 false 时不写入
func (sm *SafeMap[V]) Update(key uuid.UUID, fn func(old V, exists bool) (V, bool)) bool {
	s := sm.shard(key)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	old, exists := s.data[key]
	next, ok := fn(old, exists)
	if !ok {
		return false
	}
	s.data[key] = next
	return true
}

// Size 获取大小
func (sm *SafeMap[V]) Size() int {
	n := 0
	for _, s := range sm.shards {
		s.mutex.RLock()
		n += len(s.data)
		s.mutex.RUnlock()
	}
	return n
}

// Values 返回所有值的快照
func (sm *SafeMap[V]) Values() []V {
	out := make([]V, 0, sm.Size())
	for _, s := range sm.shards {
		s.mutex.RLock()
		for _, v := range s.data {
			out = append(out, v)
		}
		s.mutex.RUnlock()
	}
	return out
}

// Clear 清空所有数据
func (sm *SafeMap[V]) Clear() {
	for _, s := range sm.shards {
		s.mutex.Lock()
		s.data = make(map[uuid.UUID]V)
		s.mutex.Unlock()
	}
}
