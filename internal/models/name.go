package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// LoadingName 名字尚未解析完成时返回的占位字符串
	LoadingName = "Loading..."
	// UnknownName 零值ID（"无人"）对应的固定字符串
	UnknownName = "(???) (???)"
	// DefaultLastName 平台为只有名字的账号分配的默认姓氏
	DefaultLastName = "Resident"
)

// LegacyOnly NextUpdate 的哨兵值：记录只有传统名字，显示名尚未获取
var LegacyOnly = time.Unix(0, 0).UTC()

// DisplayMode 名字显示模式（进程级设置）
type DisplayMode int32

const (
	ModeStandard DisplayMode = iota
	ModeSmart
	ModeOnlyDisplayName
	ModeDisplayNameAndUserName
)

var modeNames = map[DisplayMode]string{
	ModeStandard:               "standard",
	ModeSmart:                  "smart",
	ModeOnlyDisplayName:        "only_display_name",
	ModeDisplayNameAndUserName: "display_name_and_user_name",
}

func (m DisplayMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("DisplayMode(%d)", int32(m))
}

// ParseDisplayMode 解析配置中的显示模式
func ParseDisplayMode(s string) (DisplayMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return ModeStandard, fmt.Errorf("unknown display mode: %q", s)
}

// NameRecord 一个头像ID对应的全部名字信息
type NameRecord struct {
	ID                   uuid.UUID `json:"ID"`
	LegacyFirstName      string    `json:"LegacyFirstName"`
	LegacyLastName       string    `json:"LegacyLastName"`
	DisplayName          string    `json:"DisplayName"`
	UserName             string    `json:"UserName"`
	IsDefaultDisplayName bool      `json:"IsDefaultDisplayName"`
	Updated              time.Time `json:"Updated"`
	NextUpdate           time.Time `json:"NextUpdate"`
}

// NewLegacyRecord 根据传统名字创建记录（显示名使用默认值）
func NewLegacyRecord(id uuid.UUID, first, last string, now time.Time) NameRecord {
	return NameRecord{
		ID:                   id,
		LegacyFirstName:      first,
		LegacyLastName:       last,
		DisplayName:          first + " " + last,
		UserName:             MakeUserName(first, last),
		IsDefaultDisplayName: true,
		Updated:              now,
		NextUpdate:           LegacyOnly,
	}
}

// IsLegacyOnly 记录是否只有传统名字
func (r NameRecord) IsLegacyOnly() bool {
	return r.NextUpdate.Equal(LegacyOnly)
}

// LegacyName 传统的 "First Last" 格式
func (r NameRecord) LegacyName() string {
	if r.LegacyLastName == "" {
		return r.LegacyFirstName
	}
	return r.LegacyFirstName + " " + r.LegacyLastName
}

// IsResolved 记录在给定模式下是否可以直接用于显示
func (r NameRecord) IsResolved(mode DisplayMode) bool {
	if mode == ModeStandard {
		return IsValidName(r.LegacyName())
	}
	return !r.IsLegacyOnly() && IsValidName(r.DisplayName)
}

// FormatName 按显示模式格式化名字
func (r NameRecord) FormatName(mode DisplayMode) string {
	switch mode {
	case ModeOnlyDisplayName:
		return r.DisplayName
	case ModeSmart:
		if r.IsDefaultDisplayName {
			return r.DisplayName
		}
		return fmt.Sprintf("%s (%s)", r.DisplayName, r.UserName)
	case ModeDisplayNameAndUserName:
		return fmt.Sprintf("%s (%s)", r.DisplayName, r.UserName)
	default:
		return r.LegacyName()
	}
}

// IsValidName 名字非空且不是占位字符串
func IsValidName(name string) bool {
	name = strings.TrimSpace(name)
	switch name {
	case "", LoadingName, UnknownName, "???":
		return false
	}
	return true
}

// MakeUserName 由传统名字生成登录名：first.last，默认姓氏时只保留名字
func MakeUserName(first, last string) string {
	first = strings.ToLower(strings.TrimSpace(first))
	last = strings.ToLower(strings.TrimSpace(last))
	if last == "" || last == strings.ToLower(DefaultLastName) {
		return first
	}
	return first + "." + last
}

// ParseLegacyName 将 "First Last" 拆成两段，不是恰好两段时返回 false
func ParseLegacyName(full string) (first, last string, ok bool) {
	parts := strings.Fields(full)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
