package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"namecache/internal/models"
)

// ErrNoBackend 未配置持久化后端
var ErrNoBackend = errors.New("cache: no backend configured")

// Backend 持久化后端：整体读取、整体替换
type Backend interface {
	Load(ctx context.Context) ([]models.NameRecord, error)
	Save(ctx context.Context, records []models.NameRecord) error
	Remove(ctx context.Context) error
}

// document 缓存文件的顶层结构
type document struct {
	Names []models.NameRecord `json:"names"`
}

// FileBackend 单文件后端，写入时先写临时文件再原子替换
type FileBackend struct {
	path string
}

// NewFileBackend 创建文件后端
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path 缓存文件路径
func (f *FileBackend) Path() string {
	return f.path
}

// Load 读取整个缓存文件；文件不存在时返回空列表
func (f *FileBackend) Load(_ context.Context) ([]models.NameRecord, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read name cache: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode name cache: %w", err)
	}
	return doc.Names, nil
}

// Save 序列化全部记录并替换缓存文件
func (f *FileBackend) Save(_ context.Context, records []models.NameRecord) error {
	if records == nil {
		records = []models.NameRecord{}
	}
	data, err := json.Marshal(document{Names: records})
	if err != nil {
		return fmt.Errorf("encode name cache: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace name cache: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"文件":  f.path,
		"记录数": len(records),
		"大小":  humanize.Bytes(uint64(len(data))),
	}).Debug("💾 名字缓存文件已写入")
	return nil
}

// Remove 删除缓存文件
func (f *FileBackend) Remove(_ context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove name cache: %w", err)
	}
	return nil
}

// PersistentCache 在后端之上实现加载过滤和失败降级
type PersistentCache struct {
	backend Backend
	maxAge  time.Duration
	now     func() time.Time
}

// NewPersistentCache 创建持久化缓存；maxAge 为显示名模式下记录的最大年龄
func NewPersistentCache(backend Backend, maxAge time.Duration) *PersistentCache {
	return &PersistentCache{
		backend: backend,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Load 读取记录并按模式过滤。任何错误都只记录日志并返回空列表
func (p *PersistentCache) Load(ctx context.Context, mode models.DisplayMode) []models.NameRecord {
	if p == nil || p.backend == nil {
		return nil
	}

	records, err := p.backend.Load(ctx)
	if err != nil {
		logrus.WithError(err).Error("❌ 名字缓存加载失败，使用空缓存")
		return nil
	}

	now := p.now()
	kept := make([]models.NameRecord, 0, len(records))
	for _, rec := range records {
		if !p.keep(rec, mode, now) {
			continue
		}
		kept = append(kept, rec)
	}

	logrus.WithFields(logrus.Fields{
		"读取": len(records),
		"保留": len(kept),
		"模式": mode.String(),
	}).Info("✅ 名字缓存已加载")
	return kept
}

func (p *PersistentCache) keep(rec models.NameRecord, mode models.DisplayMode, now time.Time) bool {
	if rec.ID == uuid.Nil {
		return false
	}
	if mode == models.ModeStandard {
		return true
	}
	return now.Sub(rec.Updated) < p.maxAge
}

// Save 持久化全部记录
func (p *PersistentCache) Save(ctx context.Context, records []models.NameRecord) error {
	if p == nil || p.backend == nil {
		return ErrNoBackend
	}
	if err := p.backend.Save(ctx, records); err != nil {
		return err
	}
	logrus.WithField("记录数", len(records)).Debug("💾 名字缓存已保存")
	return nil
}

// Remove 删除持久化数据
func (p *PersistentCache) Remove(ctx context.Context) error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Remove(ctx)
}
