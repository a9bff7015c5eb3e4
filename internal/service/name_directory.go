package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"namecache/internal/database"
	"namecache/internal/models"
)

const directoryBatchSize = 500

// NameDirectory 基于 MySQL 的名字缓存后端（cache.backend=mysql）
type NameDirectory struct {
	db *gorm.DB
}

// NewNameDirectory 创建数据库后端
func NewNameDirectory(db *gorm.DB) *NameDirectory {
	return &NameDirectory{db: db}
}

// Load 读取全部名字记录，非法行被跳过
func (d *NameDirectory) Load(ctx context.Context) ([]models.NameRecord, error) {
	if err := database.PingWithRetry(d.db, 3); err != nil {
		return nil, err
	}

	var rows []models.NameRow
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询名字表失败: %w", err)
	}

	records := make([]models.NameRecord, 0, len(rows))
	for _, row := range rows {
		rec, ok := row.ToRecord()
		if !ok {
			logrus.WithField("agent_id", row.AgentID).Warn("⚠️ 跳过非法的名字记录")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save 在一个事务内整体替换名字表
func (d *NameDirectory) Save(ctx context.Context, records []models.NameRecord) error {
	rows := make([]models.NameRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.NewNameRow(rec))
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAll(tx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, directoryBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("保存名字表失败: %w", err)
	}
	return nil
}

// Remove 清空名字表
func (d *NameDirectory) Remove(ctx context.Context) error {
	if err := deleteAll(d.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("清空名字表失败: %w", err)
	}
	return nil
}

func deleteAll(tx *gorm.DB) error {
	return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.NameRow{}).Error
}
