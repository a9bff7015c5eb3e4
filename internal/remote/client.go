// Package remote 定义远程名字服务的调用约定
package remote

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"namecache/internal/models"
)

// ErrNotSupported 远程服务不支持显示名
var ErrNotSupported = errors.New("remote: display names not supported")

// Client 远程名字服务
type Client interface {
	// SupportsDisplayNames 能力标志，选择调用哪个批量接口之前检查
	SupportsDisplayNames() bool
	// LegacyNames 批量查询传统名字，返回 ID -> "First Last"，可能只包含部分 ID
	LegacyNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	// DisplayNames 批量查询显示名，返回成功的记录和失败的 ID
	DisplayNames(ctx context.Context, ids []uuid.UUID) ([]models.NameRecord, []uuid.UUID, error)
}
