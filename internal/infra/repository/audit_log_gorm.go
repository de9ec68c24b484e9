package repository

import (
	"context"
	"fmt"
	"time"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"gorm.io/gorm"
)

type AuditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) *AuditLogGormRepository {
	return &AuditLogGormRepository{db: db}
}

// Webhookなど操作者のいない記録はActorUserIDがnil
func (r *AuditLogGormRepository) Create(ctx context.Context, entry model.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func trailScope(f repo.AuditTrailFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.Action != "" {
			q = q.Where("action = ?", f.Action)
		}
		if f.ResourceType != "" {
			q = q.Where("resource_type = ?", f.ResourceType)
		}
		if f.ResourceID != "" {
			q = q.Where("resource_id = ?", f.ResourceID)
		}
		if f.From != nil {
			q = q.Where("created_at >= ?", *f.From)
		}
		if f.To != nil {
			q = q.Where("created_at <= ?", *f.To)
		}
		return q
	}
}

func (r *AuditLogGormRepository) ListTrail(ctx context.Context, f repo.AuditTrailFilter) ([]model.AuditLog, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.AuditLog{}).
		Scopes(trailScope(f)).
		Count(&total).Error; err != nil {
		return []model.AuditLog{}, 0, fmt.Errorf("count audit logs: %w", err)
	}

	var entries []model.AuditLog
	if err := r.db.WithContext(ctx).
		Scopes(trailScope(f)).
		Order("created_at desc, id desc").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&entries).Error; err != nil {
		return []model.AuditLog{}, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, total, nil
}
