package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Saver 可持久化的名字缓存
type Saver interface {
	Dirty() bool
	SaveToCache(ctx context.Context) error
}

// Flusher 定时将名字缓存写入磁盘
type Flusher struct {
	cron     *cron.Cron
	saver    Saver
	interval time.Duration
	ctx      context.Context
}

// NewFlusher 创建缓存刷新任务
func NewFlusher(saver Saver, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Flusher{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		saver:    saver,
		interval: interval,
		ctx:      context.Background(),
	}
}

// Start 启动定时任务，每个间隔触发一次
func (f *Flusher) Start(ctx context.Context) error {
	f.ctx = ctx
	_, err := f.cron.AddFunc(fmt.Sprintf("@every %s", f.interval), f.flush)
	if err != nil {
		return err
	}

	f.cron.Start()
	logrus.WithField("间隔", f.interval.String()).Info("⏰ 名字缓存定时保存已启动")
	return nil
}

// Stop 停止定时任务（不会额外保存）
func (f *Flusher) Stop() {
	<-f.cron.Stop().Done()
	logrus.Info("⏹️  名字缓存定时保存已停止")
}

// flush 有未保存修改时写入；失败时保持未保存状态，下个周期重试
func (f *Flusher) flush() {
	if !f.saver.Dirty() {
		return
	}
	if err := f.saver.SaveToCache(f.ctx); err != nil {
		logrus.WithError(err).Error("❌ 名字缓存定时保存失败")
		return
	}
	logrus.Debug("💾 名字缓存已定时保存")
}
