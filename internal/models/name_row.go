package models

import (
	"time"

	"github.com/google/uuid"
)

// NameRow 名字镜像表（MySQL 后端持久化名字缓存）
type NameRow struct {
	AgentID              string    `gorm:"primaryKey;type:char(36)" json:"agent_id"`
	LegacyFirstName      string    `gorm:"type:varchar(64)" json:"legacy_first_name"`
	LegacyLastName       string    `gorm:"type:varchar(64)" json:"legacy_last_name"`
	DisplayName          string    `gorm:"type:varchar(255)" json:"display_name"`
	UserName             string    `gorm:"index;type:varchar(255)" json:"user_name"`
	IsDefaultDisplayName bool      `gorm:"not null;default:true" json:"is_default_display_name"`
	Updated              time.Time `gorm:"index" json:"updated"`
	NextUpdate           time.Time `json:"next_update"`
}

// TableName 指定表名
func (NameRow) TableName() string {
	return "agent_names"
}

// ToRecord 转换为内存记录，ID 非法时返回 false
func (r NameRow) ToRecord() (NameRecord, bool) {
	id, err := uuid.Parse(r.AgentID)
	if err != nil || id == uuid.Nil {
		return NameRecord{}, false
	}
	return NameRecord{
		ID:                   id,
		LegacyFirstName:      r.LegacyFirstName,
		LegacyLastName:       r.LegacyLastName,
		DisplayName:          r.DisplayName,
		UserName:             r.UserName,
		IsDefaultDisplayName: r.IsDefaultDisplayName,
		Updated:              r.Updated,
		NextUpdate:           r.NextUpdate,
	}, true
}

// NewNameRow 从内存记录生成表行
func NewNameRow(rec NameRecord) NameRow {
	return NameRow{
		AgentID:              rec.ID.String(),
		LegacyFirstName:      rec.LegacyFirstName,
		LegacyLastName:       rec.LegacyLastName,
		DisplayName:          rec.DisplayName,
		UserName:             rec.UserName,
		IsDefaultDisplayName: rec.IsDefaultDisplayName,
		Updated:              rec.Updated,
		NextUpdate:           rec.NextUpdate,
	}
}
