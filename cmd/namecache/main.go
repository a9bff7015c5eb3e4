package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"namecache/internal/cache"
	"namecache/internal/config"
	"namecache/internal/database"
	"namecache/internal/metrics"
	"namecache/internal/remote"
	"namecache/internal/resolver"
	"namecache/internal/scheduler"
	"namecache/internal/service"
	"namecache/internal/utils"
)

var fConfig = flag.String("config", "config/config.yaml", "path to the YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*fConfig)
	if err != nil {
		logrus.Fatalf("❌ 配置文件加载失败: %v", err)
	}

	if err := utils.InitLogger(cfg.System.LogDir, cfg.System.LogLevel); err != nil {
		logrus.Fatalf("❌ 日志系统初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.System.MetricsAddr != "" {
		go serveMetrics(cfg.System.MetricsAddr, m)
	}

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		logrus.Fatalf("❌ 名字缓存后端初始化失败: %v", err)
	}
	defer closeBackend()

	client := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, cfg.Remote.DisplayNames)
	if err := client.Probe(ctx); err != nil {
		logrus.Warnf("⚠️  名字服务能力探测失败，使用配置默认值: %v", err)
	}

	mode, err := cfg.Names.DisplayMode()
	if err != nil {
		logrus.Warnf("⚠️  %v，使用 standard 模式", err)
	}
	svc := service.NewNameService(
		cache.NewNameStore(),
		resolver.NewQueue(m),
		utils.NewTokenBucket(cfg.Resolver.RateCapacity, cfg.Resolver.RateRefill, cfg.Resolver.RatePeriod),
		client,
		cache.NewPersistentCache(backend, cfg.Names.MaxAge),
		service.Options{
			Mode:        mode,
			WaitTimeout: cfg.Names.WaitTimeout,
			Resolver: resolver.Options{
				BatchSize:   cfg.Resolver.BatchSize,
				BatchWindow: cfg.Resolver.BatchWindow,
				Backoff:     cfg.Resolver.Backoff,
				MaxInflight: cfg.Resolver.MaxInflight,
			},
		},
		m,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.Run(ctx); err != nil {
			logrus.Errorf("❌ 名字服务错误: %v", err)
		}
	}()

	flusher := scheduler.NewFlusher(svc, cfg.Cache.FlushInterval)
	if err := flusher.Start(ctx); err != nil {
		logrus.Fatalf("❌ 定时任务启动失败: %v", err)
	}

	select {
	case <-svc.Loaded():
	case <-ctx.Done():
	}

	ids := flag.Args()
	if len(ids) == 0 {
		ids = readIDs(os.Stdin)
	}
	resolveAll(ctx, svc, ids)

	flusher.Stop()
	if err := svc.SaveToCache(context.Background()); err != nil && !errors.Is(err, cache.ErrNoBackend) {
		logrus.Warnf("⚠️  退出前保存名字缓存失败: %v", err)
	}

	stop()
	<-done
	logrus.WithFields(logrus.Fields(svc.Stats())).Debug("👋 名字服务已停止")
}

// openBackend 根据配置创建持久化后端
func openBackend(cfg *config.Config) (cache.Backend, func(), error) {
	switch cfg.Cache.Backend {
	case "", "file":
		fb := cache.NewFileBackend(cfg.Cache.Path)
		logrus.WithField("文件", fb.Path()).Info("📁 使用文件名字缓存")
		return fb, func() {}, nil
	case "mysql":
		db, err := database.Open(database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			Username:        cfg.Database.Username,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			Charset:         cfg.Database.Charset,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			database.Close(db)
			return nil, nil, err
		}
		logrus.WithFields(logrus.Fields{
			"主机": cfg.Database.Host,
			"库名": cfg.Database.Database,
		}).Info("✅ 数据库连接成功")
		return service.NewNameDirectory(db), func() { database.Close(db) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %q", cfg.Cache.Backend)
	}
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logrus.WithField("地址", addr).Info("📈 指标服务已启动")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.Errorf("❌ 指标服务错误: %v", err)
	}
}

// readIDs 从标准输入读取 ID，跳过空行和注释
func readIDs(f *os.File) []string {
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		ids = append(ids, line)
	}
	return ids
}

func resolveAll(ctx context.Context, svc *service.NameService, raw []string) {
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			logrus.Warnf("⚠️  跳过非法 ID %q: %v", s, err)
			continue
		}
		// 先全部入队，让批量解析合并请求
		svc.Get(id)
	}

	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		name, err := svc.GetContext(ctx, id)
		if err != nil {
			return
		}
		fmt.Printf("%s\t%s\n", id, name)
	}
}
