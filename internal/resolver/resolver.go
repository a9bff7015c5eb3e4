// Package resolver 将排队的头像 ID 批量交给远程名字服务解析
package resolver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"namecache/internal/cache"
	"namecache/internal/metrics"
	"namecache/internal/models"
	"namecache/internal/remote"
	"namecache/internal/utils"
)

// State 批量解析循环的状态
type State int32

const (
	WaitingForWork State = iota
	AcquiringRateLimit
	Batching
	Dispatching
	Stopped
)

func (s State) String() string {
	switch s {
	case WaitingForWork:
		return "waiting_for_work"
	case AcquiringRateLimit:
		return "acquiring_rate_limit"
	case Batching:
		return "batching"
	case Dispatching:
		return "dispatching"
	default:
		return "stopped"
	}
}

// Options 批量解析参数
type Options struct {
	BatchSize   int
	BatchWindow time.Duration
	Backoff     time.Duration
	MaxInflight int
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchWindow <= 0 {
		o.BatchWindow = 100 * time.Millisecond
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxInflight <= 0 {
		o.MaxInflight = 4
	}
}

// BatchResolver 后台批量解析器
type BatchResolver struct {
	queue   *Queue
	limiter *utils.TokenBucket
	client  remote.Client
	store   *cache.NameStore
	mode    func() models.DisplayMode
	notify  func([]models.NameRecord)
	opts    Options
	metrics *metrics.Metrics
	state   atomic.Int32
	now     func() time.Time
}

// New 创建批量解析器。mode 返回当前显示模式；notify 在记录更新后被调用
func New(queue *Queue, limiter *utils.TokenBucket, client remote.Client, store *cache.NameStore,
	mode func() models.DisplayMode, notify func([]models.NameRecord), opts Options, m *metrics.Metrics) *BatchResolver {

	opts.normalize()
	r := &BatchResolver{
		queue:   queue,
		limiter: limiter,
		client:  client,
		store:   store,
		mode:    mode,
		notify:  notify,
		opts:    opts,
		metrics: m,
		now:     time.Now,
	}
	r.state.Store(int32(Stopped))
	return r
}

// State 当前状态
func (r *BatchResolver) State() State {
	return State(r.state.Load())
}

func (r *BatchResolver) setState(s State) {
	r.state.Store(int32(s))
}

// Run 运行解析循环直到 ctx 结束；进行中的远程调用不会被等待
func (r *BatchResolver) Run(ctx context.Context) error {
	pool := utils.NewWorkerPool(r.opts.MaxInflight)
	defer pool.Close()
	defer r.setState(Stopped)

	wait := backoff.WithContext(backoff.NewConstantBackOff(r.opts.Backoff), ctx)

	logrus.WithFields(logrus.Fields{
		"批量上限": r.opts.BatchSize,
		"时间窗口": r.opts.BatchWindow,
	}).Info("🚀 名字批量解析已启动")

	for {
		r.setState(WaitingForWork)
		if err := r.queue.Wait(ctx); err != nil {
			return nil
		}

		r.setState(AcquiringRateLimit)
		if !r.limiter.Acquire(ctx, 1) {
			if ctx.Err() != nil {
				return nil
			}
			r.metrics.RateLimited()
			logrus.WithField("队列长度", r.queue.Len()).Warn("⚠️ 未获得限流令牌，稍后重试")
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		r.setState(Batching)
		ids, err := r.queue.DequeueBatch(ctx, r.opts.BatchWindow, r.opts.BatchSize)
		if err != nil {
			r.queue.Done(ids)
			return nil
		}
		if len(ids) == 0 {
			continue
		}

		r.setState(Dispatching)
		submitted := pool.Submit(ctx, func() {
			defer r.queue.Done(ids)
			r.dispatch(ctx, ids)
		})
		if !submitted {
			r.queue.Done(ids)
			return nil
		}
	}
}

func sleep(ctx context.Context, b backoff.BackOff) bool {
	d := b.NextBackOff()
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *BatchResolver) dispatch(ctx context.Context, ids []uuid.UUID) {
	if r.mode() == models.ModeStandard || !r.client.SupportsDisplayNames() {
		r.resolveLegacy(ctx, ids)
		return
	}
	r.resolveDisplay(ctx, ids)
}

func (r *BatchResolver) resolveLegacy(ctx context.Context, ids []uuid.UUID) {
	names, err := r.client.LegacyNames(ctx, ids)
	if err != nil {
		r.metrics.Batch("legacy", false)
		if ctx.Err() == nil {
			logrus.WithError(err).WithField("数量", len(ids)).Error("❌ 传统名字批量查询失败")
		}
		return
	}
	r.metrics.Batch("legacy", true)

	updated := r.ApplyLegacyNames(names)
	logrus.WithFields(logrus.Fields{
		"请求": len(ids),
		"更新": updated,
	}).Debug("✓ 传统名字批量查询完成")
}

func (r *BatchResolver) resolveDisplay(ctx context.Context, ids []uuid.UUID) {
	records, failed, err := r.client.DisplayNames(ctx, ids)
	if err != nil {
		r.metrics.Batch("display", false)
		if ctx.Err() == nil {
			logrus.WithError(err).WithField("数量", len(ids)).Error("❌ 显示名批量查询失败")
		}
		return
	}
	r.metrics.Batch("display", true)

	updated := r.ApplyDisplayNames(records)
	logrus.WithFields(logrus.Fields{
		"请求": len(ids),
		"更新": updated,
		"失败": len(failed),
	}).Debug("✓ 显示名批量查询完成")
}

// ApplyLegacyNames 校验并写入传统名字结果，返回更新的记录数
func (r *BatchResolver) ApplyLegacyNames(names map[uuid.UUID]string) int {
	now := r.now()
	updated := make([]models.NameRecord, 0, len(names))
	for id, full := range names {
		first, last, ok := models.ParseLegacyName(full)
		if !ok {
			logrus.WithFields(logrus.Fields{"ID": id, "名字": full}).Debug("跳过格式错误的传统名字")
			continue
		}
		rec := models.NewLegacyRecord(id, first, last, now)
		if !models.IsValidName(rec.LegacyName()) {
			continue
		}
		if merged, ok := r.store.Upsert(rec); ok {
			updated = append(updated, merged)
		}
	}
	r.publish(updated)
	return len(updated)
}

// ApplyDisplayNames 校验并写入显示名结果，返回更新的记录数
func (r *BatchResolver) ApplyDisplayNames(records []models.NameRecord) int {
	updated := make([]models.NameRecord, 0, len(records))
	for _, rec := range records {
		if !models.IsValidName(rec.DisplayName) {
			continue
		}
		if rec.UserName == "" {
			rec.UserName = models.MakeUserName(rec.LegacyFirstName, rec.LegacyLastName)
		}
		if rec.Updated.IsZero() {
			rec.Updated = r.now()
		}
		if rec.IsLegacyOnly() {
			rec.NextUpdate = time.Time{}
		}
		if merged, ok := r.store.Upsert(rec); ok {
			updated = append(updated, merged)
		}
	}
	r.publish(updated)
	return len(updated)
}

func (r *BatchResolver) publish(updated []models.NameRecord) {
	if len(updated) == 0 || r.notify == nil {
		return
	}
	r.notify(updated)
}
