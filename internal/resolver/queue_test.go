package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDeduplicatesPending(t *testing.T) {
	q := NewQueue(nil)
	id := uuid.New()

	assert.True(t, q.Enqueue(id))
	assert.False(t, q.Enqueue(id))
	assert.False(t, q.Enqueue(uuid.Nil))
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Pending(id))

	batch, err := q.DequeueBatch(context.Background(), time.Millisecond, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, batch)
	assert.Equal(t, 0, q.Len())

	// 解析中仍视为 pending
	assert.True(t, q.Pending(id))
	assert.False(t, q.Enqueue(id))

	q.Done(batch)
	assert.False(t, q.Pending(id))
	assert.True(t, q.Enqueue(id))
}

func TestQueueBatchRespectsCap(t *testing.T) {
	q := NewQueue(nil)
	for i := 0; i < 250; i++ {
		q.Enqueue(uuid.New())
	}

	batch, err := q.DequeueBatch(context.Background(), time.Second, 100)
	require.NoError(t, err)
	assert.Len(t, batch, 100)
	assert.Equal(t, 150, q.Len())

	// 剩余元素应能立即被等待者看到
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, q.Wait(ctx))
}

func TestQueueBatchWindow(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(uuid.New())

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(uuid.New())
	}()

	start := time.Now()
	batch, err := q.DequeueBatch(context.Background(), 100*time.Millisecond, 100)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestQueueWaitHonorsContext(t *testing.T) {
	q := NewQueue(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Wait(ctx), context.DeadlineExceeded)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue(nil)
	ids := make([]uuid.UUID, 200)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				q.Enqueue(id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(ids), q.Len())
}
