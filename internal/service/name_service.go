package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"namecache/internal/cache"
	"namecache/internal/metrics"
	"namecache/internal/models"
	"namecache/internal/remote"
	"namecache/internal/resolver"
	"namecache/internal/utils"
)

// Options 名字服务参数
type Options struct {
	Mode        models.DisplayMode
	WaitTimeout time.Duration
	Resolver    resolver.Options
}

// NameService 头像名字查询入口
type NameService struct {
	store       *cache.NameStore
	queue       *resolver.Queue
	limiter     *utils.TokenBucket
	client      remote.Client
	persist     *cache.PersistentCache
	resolver    *resolver.BatchResolver
	notifier    *Notifier[uuid.UUID, string]
	metrics     *metrics.Metrics
	mode        atomic.Int32
	waitTimeout time.Duration
	loaded      chan struct{}

	persistMu sync.Mutex // 串行化保存与清空
}

// NewNameService 创建名字服务；persist 可以为 nil（不持久化）
func NewNameService(store *cache.NameStore, queue *resolver.Queue, limiter *utils.TokenBucket,
	client remote.Client, persist *cache.PersistentCache, opts Options, m *metrics.Metrics) *NameService {

	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Second
	}

	s := &NameService{
		store:       store,
		queue:       queue,
		limiter:     limiter,
		client:      client,
		persist:     persist,
		notifier:    NewNotifier[uuid.UUID, string](),
		metrics:     m,
		waitTimeout: opts.WaitTimeout,
		loaded:      make(chan struct{}),
	}
	s.mode.Store(int32(opts.Mode))
	s.resolver = resolver.New(queue, limiter, client, store, s.Mode, s.publish, opts.Resolver, m)
	return s
}

// Run 加载持久化缓存并运行批量解析，直到 ctx 结束
func (s *NameService) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.load(ctx)
		return nil
	})
	g.Go(func() error {
		return s.resolver.Run(ctx)
	})

	return g.Wait()
}

func (s *NameService) load(ctx context.Context) {
	defer close(s.loaded)

	seeded := 0
	for _, rec := range s.persist.Load(ctx, s.Mode()) {
		if s.store.Seed(rec) {
			seeded++
		}
	}
	logrus.WithField("记录数", seeded).Debug("💾 名字缓存已导入内存")
}

// Loaded 启动加载完成后关闭
func (s *NameService) Loaded() <-chan struct{} {
	return s.loaded
}

// Mode 当前显示模式
func (s *NameService) Mode() models.DisplayMode {
	return models.DisplayMode(s.mode.Load())
}

// SetMode 修改显示模式。已缓存的记录不会立即失效，下次解析或清空缓存后才按新模式补全
func (s *NameService) SetMode(mode models.DisplayMode) {
	old := models.DisplayMode(s.mode.Swap(int32(mode)))
	if old != mode {
		logrus.WithFields(logrus.Fields{
			"原模式": old.String(),
			"新模式": mode.String(),
		}).Info("🔁 名字显示模式已切换")
	}
}

// resolved 记录在当前模式下是否可直接使用。
// 服务不支持显示名时只有传统名字可用，此时传统记录也视为已解析。
func (s *NameService) resolved(rec models.NameRecord, mode models.DisplayMode) bool {
	if rec.IsResolved(mode) {
		return true
	}
	return mode != models.ModeStandard && !s.client.SupportsDisplayNames() && models.IsValidName(rec.DisplayName)
}

func (s *NameService) lookup(id uuid.UUID) (string, bool) {
	mode := s.Mode()
	rec, ok := s.store.TryGet(id)
	if !ok || !s.resolved(rec, mode) {
		return "", false
	}
	return rec.FormatName(mode), true
}

func (s *NameService) request(id uuid.UUID) {
	if s.queue.Enqueue(id) {
		logrus.WithField("ID", id).Debug("名字已加入解析队列")
	}
}

// Get 返回格式化后的名字；未解析时加入队列并返回占位字符串
func (s *NameService) Get(id uuid.UUID) string {
	if id == uuid.Nil {
		return models.UnknownName
	}
	if name, ok := s.lookup(id); ok {
		s.metrics.Lookup(true)
		return name
	}
	s.metrics.Lookup(false)
	s.request(id)
	return models.LoadingName
}

// GetOrDefault 标准模式下直接返回 def（调用方已持有传统名字），否则名字未解析时返回 def
func (s *NameService) GetOrDefault(id uuid.UUID, def string) string {
	if s.Mode() == models.ModeStandard {
		return def
	}
	name := s.Get(id)
	if name == models.LoadingName {
		return def
	}
	return name
}

// GetContext 等待名字解析完成，最长等待 WaitTimeout。
// 超时返回占位字符串；ctx 取消时返回占位字符串和 ctx.Err()。排队的解析请求不会被取消。
func (s *NameService) GetContext(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return models.UnknownName, nil
	}
	if name, ok := s.lookup(id); ok {
		s.metrics.Lookup(true)
		return name, nil
	}
	s.metrics.Lookup(false)

	name, ok, err := s.notifier.WaitFor(ctx, id, s.waitTimeout, func() { s.request(id) })
	if err != nil {
		return models.LoadingName, err
	}
	if ok {
		return name, nil
	}

	// 订阅之前可能已经解析完成
	if name, ok := s.lookup(id); ok {
		return name, nil
	}
	logrus.WithField("ID", id).Debug("⏱️ 等待名字解析超时")
	return models.LoadingName, nil
}

func (s *NameService) field(id uuid.UUID, pick func(models.NameRecord) (string, bool)) string {
	if id == uuid.Nil {
		return models.UnknownName
	}
	if rec, ok := s.store.TryGet(id); ok {
		if v, ok := pick(rec); ok {
			return v
		}
	}
	s.request(id)
	return models.LoadingName
}

// GetUserName 返回登录名
func (s *NameService) GetUserName(id uuid.UUID) string {
	return s.field(id, func(rec models.NameRecord) (string, bool) {
		return rec.UserName, models.IsValidName(rec.UserName)
	})
}

// GetDisplayName 返回显示名
func (s *NameService) GetDisplayName(id uuid.UUID) string {
	return s.field(id, func(rec models.NameRecord) (string, bool) {
		return rec.DisplayName, models.IsValidName(rec.DisplayName) && s.resolved(rec, s.Mode())
	})
}

// GetLegacyName 返回传统的 "First Last" 名字
func (s *NameService) GetLegacyName(id uuid.UUID) string {
	return s.field(id, func(rec models.NameRecord) (string, bool) {
		name := rec.LegacyName()
		return name, models.IsValidName(name)
	})
}

// Subscribe 订阅名字变更（ID -> 格式化后的名字），返回退订函数
func (s *NameService) Subscribe(l Listener[uuid.UUID, string]) func() {
	return s.notifier.Subscribe(l)
}

// SubscriberCount 当前订阅者数量
func (s *NameService) SubscriberCount() int {
	return s.notifier.Len()
}

// HandleDisplayNameUpdate 处理服务端主动推送的显示名变更
func (s *NameService) HandleDisplayNameUpdate(rec models.NameRecord) {
	if s.resolver.ApplyDisplayNames([]models.NameRecord{rec}) > 0 {
		logrus.WithFields(logrus.Fields{
			"ID":  rec.ID,
			"显示名": rec.DisplayName,
		}).Debug("📣 收到显示名变更推送")
	}
}

// HandleLegacyNames 处理未经请求到达的传统名字回复
func (s *NameService) HandleLegacyNames(names map[uuid.UUID]string) {
	s.resolver.ApplyLegacyNames(names)
}

func (s *NameService) publish(records []models.NameRecord) {
	mode := s.Mode()
	changes := make(map[uuid.UUID]string, len(records))
	for _, rec := range records {
		name := rec.FormatName(mode)
		if !models.IsValidName(name) {
			continue
		}
		changes[rec.ID] = name
	}
	s.notifier.Notify(changes)
}

// Dirty 是否有未保存的修改
func (s *NameService) Dirty() bool {
	return s.store.Dirty()
}

// SaveToCache 将当前所有记录写入持久化缓存；失败只记录日志，内存数据不受影响
func (s *NameService) SaveToCache(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	records, version := s.store.Snapshot()
	if err := s.persist.Save(ctx, records); err != nil {
		s.metrics.CacheSave(false)
		logrus.WithError(err).Error("❌ 名字缓存保存失败")
		return err
	}
	s.store.MarkSaved(version)
	s.metrics.CacheSave(true)
	return nil
}

// CleanCache 清空内存中的记录并删除持久化数据；会等待进行中的保存完成
func (s *NameService) CleanCache(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.store.Clear()
	if err := s.persist.Remove(ctx); err != nil {
		logrus.WithError(err).Error("❌ 删除名字缓存失败")
		return err
	}
	return nil
}

// Stats 运行状态
func (s *NameService) Stats() map[string]interface{} {
	return map[string]interface{}{
		"记录数":  s.store.Len(),
		"队列长度": s.queue.Len(),
		"未保存":  s.store.Dirty(),
		"模式":   s.Mode().String(),
		"订阅者":  s.notifier.Len(),
		"解析状态": s.resolver.State().String(),
		"可用令牌": s.limiter.Available(),
	}
}
