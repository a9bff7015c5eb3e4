package cache

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"namecache/internal/models"
	"namecache/internal/utils"
)

// NameStore 名字记录存储：同步查询的唯一数据来源
type NameStore struct {
	records *utils.SafeMap[models.NameRecord]
	version atomic.Uint64 // 每次修改递增
	saved   atomic.Uint64 // 最近一次持久化时的版本
}

// NewNameStore 创建名字存储
func NewNameStore() *NameStore {
	return &NameStore{records: utils.NewSafeMap[models.NameRecord]()}
}

// TryGet 查询记录
func (s *NameStore) TryGet(id uuid.UUID) (models.NameRecord, bool) {
	if id == uuid.Nil {
		return models.NameRecord{}, false
	}
	return s.records.Get(id)
}

// Upsert 写入解析结果并返回合并后的记录。
// 只有传统名字的记录不会覆盖已有的有效显示名，只刷新传统名字和登录名。
func (s *NameStore) Upsert(rec models.NameRecord) (models.NameRecord, bool) {
	if rec.ID == uuid.Nil {
		return models.NameRecord{}, false
	}

	var merged models.NameRecord
	changed := s.records.Update(rec.ID, func(old models.NameRecord, exists bool) (models.NameRecord, bool) {
		merged = mergeRecord(old, exists, rec)
		return merged, !exists || merged != old
	})
	if changed {
		s.version.Add(1)
	}
	return merged, true
}

func mergeRecord(old models.NameRecord, exists bool, rec models.NameRecord) models.NameRecord {
	if !exists {
		return rec
	}

	if rec.Updated.Before(old.Updated) {
		rec.Updated = old.Updated
	}

	if rec.IsLegacyOnly() && !old.IsLegacyOnly() && models.IsValidName(old.DisplayName) {
		old.LegacyFirstName = rec.LegacyFirstName
		old.LegacyLastName = rec.LegacyLastName
		old.UserName = rec.UserName
		old.Updated = rec.Updated
		return old
	}
	return rec
}

// Seed 仅在记录不存在时写入（启动加载用，不覆盖运行期间已解析的结果）
func (s *NameStore) Seed(rec models.NameRecord) bool {
	if rec.ID == uuid.Nil {
		return false
	}
	return s.records.Update(rec.ID, func(_ models.NameRecord, exists bool) (models.NameRecord, bool) {
		return rec, !exists
	})
}

// Clear 清空所有记录
func (s *NameStore) Clear() {
	s.records.Clear()
	s.saved.Store(s.version.Add(1))
	logrus.Info("♻️ 名字缓存已清空")
}

// Len 记录数量
func (s *NameStore) Len() int {
	return s.records.Size()
}

// Snapshot 返回所有记录及其对应的版本
func (s *NameStore) Snapshot() ([]models.NameRecord, uint64) {
	v := s.version.Load()
	return s.records.Values(), v
}

// Dirty 是否有未持久化的修改
func (s *NameStore) Dirty() bool {
	return s.version.Load() != s.saved.Load()
}

// MarkSaved 标记某个版本已持久化
func (s *NameStore) MarkSaved(version uint64) {
	s.saved.Store(version)
}
