package repository

import (
	"context"
	"time"

	"shopcheckout/internal/domain/model"
)

// 管理画面の監査ログ一覧。空の項目は絞り込まない
type AuditTrailFilter struct {
	Page         int
	Limit        int
	Action       model.AuditAction
	ResourceType model.AuditResourceType
	ResourceID   string
	From         *time.Time
	To           *time.Time
}

// 監査ログは追記だけ。更新・削除はしない
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	//新しい順。総件数も返す
	ListTrail(ctx context.Context, f AuditTrailFilter) ([]model.AuditLog, int64, error)
}
